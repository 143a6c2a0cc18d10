// Package audio implements speech.OutputPort with local synthesis engines
// (gTTS and Piper) and oto playback. Audio is 16-bit little-endian mono
// PCM at SampleRate throughout.
package audio
