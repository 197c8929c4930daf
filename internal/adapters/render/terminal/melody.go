package terminal

import (
	"math"
	"strconv"
	"strings"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var letterSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// Tone is one playable pitch.
type Tone struct {
	Name      string
	Frequency float64
}

// Frequency returns the equal-temperament pitch of a note such as "C4",
// "F#5" or "Bb3", tuned to A4 = 440 Hz and rounded to the hundredth.
func Frequency(note string) (float64, bool) {
	midi, ok := midiNumber(note)
	if !ok {
		return 0, false
	}

	hz := 440 * math.Pow(2, float64(midi-69)/12)
	return math.Round(hz*100) / 100, true
}

// ChordNotes spells a major or minor triad rooted in the fourth octave:
// "C" is C4 E4 G4 and "Am" is A4 C5 E5. Unknown chords have no notes.
func ChordNotes(chord string) []string {
	chord = strings.TrimSpace(chord)
	if chord == "" {
		return nil
	}

	third := 4
	root := chord
	if strings.HasSuffix(chord, "m") && len(chord) > 1 {
		third = 3
		root = strings.TrimSuffix(chord, "m")
	}

	base, ok := midiNumber(root + "4")
	if !ok {
		return nil
	}

	return []string{noteName(base), noteName(base + third), noteName(base + 7)}
}

func midiNumber(note string) (int, bool) {
	note = strings.TrimSpace(note)
	if len(note) < 2 {
		return 0, false
	}

	semitone, ok := letterSemitones[note[0]]
	if !ok {
		return 0, false
	}
	rest := note[1:]
	switch rest[0] {
	case '#':
		semitone++
		rest = rest[1:]
	case 'b':
		semitone--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil || octave < 0 || octave > 8 {
		return 0, false
	}

	return 12*(octave+1) + semitone, true
}

func noteName(midi int) string {
	return noteNames[midi%12] + strconv.Itoa(midi/12-1)
}
