// Package synth provides terminal speech synthesis engines for the voice
// selector. A Speaker drives one Backend (Piper or gTTS), caches the PCM it
// produces and plays it through an audio player.
package synth
