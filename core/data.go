package core

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-openapi/strfmt"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// Bit is a classical bit. Only 0 and 1 are valid, but the type can hold any
// value so that misbehaving strategies can be detected instead of coerced.
type Bit uint8

func (b Bit) Valid() bool {
	return b == 0 || b == 1
}

func BitOf(v bool) Bit {
	if v {
		return 1
	}
	return 0
}

type QuestionPair struct {
	X Bit `json:"x"`
	Y Bit `json:"y"`
}

func (q QuestionPair) String() string {
	return fmt.Sprintf("(x,y)=(%d,%d)", q.X, q.Y)
}

// AllQuestionPairs lists the four question pairs in (x,y) lexical order.
func AllQuestionPairs() []QuestionPair {
	return []QuestionPair{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
}

// AnswerPair holds Alice's answer A and Bob's answer B.
//
// As a bitstring the pair is written c[1]c[0], Bob's bit first, because Alice
// measures into classical bit 0 and Bob into classical bit 1. "10" is A=0, B=1.
type AnswerPair struct {
	A Bit `json:"a"`
	B Bit `json:"b"`
}

func (a AnswerPair) Valid() bool {
	return a.A.Valid() && a.B.Valid()
}

func (a AnswerPair) String() string {
	return fmt.Sprintf("(a,b)=(%d,%d)", a.A, a.B)
}

func (a AnswerPair) BitString() string {
	return fmt.Sprintf("%d%d", a.B, a.A)
}

func AnswerPairFromBitString(s string) (AnswerPair, error) {
	if len(s) != 2 {
		return AnswerPair{}, errors.Errorf("bitstring %q must have 2 bits", s)
	}
	toBit := func(c byte) (Bit, error) {
		switch c {
		case '0':
			return 0, nil
		case '1':
			return 1, nil
		default:
			return 0, errors.Errorf("bitstring %q has a non binary character %q", s, c)
		}
	}
	b, err := toBit(s[0])
	if err != nil {
		return AnswerPair{}, err
	}
	a, err := toBit(s[1])
	if err != nil {
		return AnswerPair{}, err
	}
	return AnswerPair{A: a, B: b}, nil
}

type Counts map[string]uint32

func (c Counts) String() string {
	st, err := jsonIter.Marshal(c)
	if err != nil {
		zap.L().Error("Failed to marshal core.Counts")
		return ""
	}
	return string(st)
}

// Stats is the outcome of one harness run. Seed is set when the questions came
// from a SeededSampler.
type Stats struct {
	ID        string          `json:"id"`
	Requested int             `json:"requested"`
	Completed int             `json:"completed"`
	Wins      int             `json:"wins"`
	Partial   bool            `json:"partial"`
	Seed      int64           `json:"seed,omitempty"`
	Outcomes  []bool          `json:"outcomes,omitempty"`
	Started   strfmt.DateTime `json:"started"`
	Ended     strfmt.DateTime `json:"ended"`
}

// WinFraction is wins over completed trials. For a complete run this equals
// wins over requested trials.
func (s *Stats) WinFraction() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Completed)
}

// WinCounts returns the running number of wins after each recorded trial.
func (s *Stats) WinCounts() []int {
	counts := make([]int, len(s.Outcomes))
	wins := 0
	for i, won := range s.Outcomes {
		if won {
			wins++
		}
		counts[i] = wins
	}
	return counts
}

func (s *Stats) ToString() string {
	type view struct {
		*Stats
		WinFraction float64 `json:"win_fraction"`
	}
	st, err := jsonIter.Marshal(view{Stats: s, WinFraction: s.WinFraction()})
	if err != nil {
		zap.L().Error("Failed to marshal core.Stats")
		return ""
	}
	return string(pretty.Pretty(st))
}
