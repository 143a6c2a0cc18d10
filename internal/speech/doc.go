// Package speech coordinates spoken output and voice input.
//
// All synthesis goes through a single Channel: starting an utterance
// cancels whatever was playing, and a superseded utterance never reports
// completion. Speaker builds on the Channel to track the word being spoken
// and to keep an optional video in lockstep with the voice.
//
// The platform capabilities are injected as OutputPort and InputPort so
// the controllers run the same against real audio devices and test fakes.
package speech
