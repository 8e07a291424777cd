// Package instruction turns a free-text image caption into a typed action
// with its parameters.
package instruction

import (
	"errors"
	"strings"
)

// Action is the image operation requested by a caption.
type Action string

const (
	ActionNone          Action = "none"
	ActionBlur          Action = "blur"
	ActionContour       Action = "contour"
	ActionRotate        Action = "rotate"
	ActionSaltAndPepper Action = "salt-and-pepper"
	ActionConcat        Action = "concat"
	ActionSegment       Action = "segment"
	ActionPredict       Action = "predict"
)

// Parameter names.
const (
	ParamDirection = "direction"
	ParamDegrees   = "degrees"
	ParamLevel     = "level"
	ParamSide      = "side"
)

// Direction values recognized in captions.
const (
	DirectionClockwise     = "clockwise"
	DirectionAntiClockwise = "anti-clockwise"
	DirectionHorizontal    = "horizontal"
	DirectionVertical      = "vertical"
)

const predictCaption = "predict"

var (
	// ErrEmptyCaption means the caption carried no text at all.
	ErrEmptyCaption = errors.New("caption is empty")
	// ErrUnknownAction means the caption named no known action.
	ErrUnknownAction = errors.New("caption names no known action")
)

// Instruction is a parsed caption.
type Instruction struct {
	Action Action
	Params map[string]string
	// Reason is set when Action is ActionNone.
	Reason error
}

// Param returns the named parameter and whether it was present.
func (in Instruction) Param(name string) (string, bool) {
	v, ok := in.Params[name]
	return v, ok
}

// Valid reports whether the caption named an action.
func (in Instruction) Valid() bool {
	return in.Action != ActionNone
}

type keyword struct {
	action   Action
	spelling []string
}

// Keywords in priority order. The first one found in the caption wins.
var keywords = []keyword{
	{ActionBlur, []string{"blur"}},
	{ActionContour, []string{"contour"}},
	{ActionRotate, []string{"rotate"}},
	{ActionSaltAndPepper, []string{"salt-and-pepper", "salt and pepper"}},
	{ActionConcat, []string{"concat"}},
	{ActionSegment, []string{"segment"}},
}

// Normalize lower-cases the caption and trims surrounding whitespace.
func Normalize(caption string) string {
	return strings.ToLower(strings.TrimSpace(caption))
}

// IsPredict reports whether the caption requests an object-detection prediction.
func IsPredict(caption string) bool {
	return Normalize(caption) == predictCaption
}

// Parse classifies a caption. It never fails; captions that name no action
// yield ActionNone with Reason set. Numeric parameters are kept verbatim.
func Parse(caption string) Instruction {
	text := Normalize(caption)
	if text == "" {
		return Instruction{Action: ActionNone, Reason: ErrEmptyCaption}
	}
	if text == predictCaption {
		return Instruction{Action: ActionPredict, Params: map[string]string{}}
	}

	for _, kw := range keywords {
		for _, spelling := range kw.spelling {
			if !strings.Contains(text, spelling) {
				continue
			}
			rest := squash(strings.ReplaceAll(text, spelling, ""))
			return Instruction{Action: kw.action, Params: parseParams(kw.action, rest)}
		}
	}

	return Instruction{Action: ActionNone, Reason: ErrUnknownAction}
}

func parseParams(action Action, rest string) map[string]string {
	params := make(map[string]string)

	switch action {
	case ActionRotate:
		// anti-clockwise contains clockwise, so it is checked first.
		rest = take(params, ParamDirection, rest, DirectionAntiClockwise, DirectionClockwise)
		if rest != "" {
			params[ParamDegrees] = rest
		}
	case ActionConcat:
		rest = take(params, ParamDirection, rest, DirectionHorizontal, DirectionVertical)
		if rest != "" {
			params[ParamSide] = rest
		}
	case ActionBlur, ActionSaltAndPepper:
		if rest != "" {
			params[ParamLevel] = rest
		}
	}

	return params
}

// take stores the first candidate found in text under name and returns
// text without it.
func take(params map[string]string, name, text string, candidates ...string) string {
	for _, c := range candidates {
		if strings.Contains(text, c) {
			params[name] = c
			return squash(strings.ReplaceAll(text, c, ""))
		}
	}
	return text
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
