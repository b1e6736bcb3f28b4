package agent

import "github.com/xkilldash9x/pocketd/api/schemas"

// assessmentMessage is the stand-in user turn inserted when a screenshot
// must be attached but the latest turn is not user-role.
const assessmentMessage = "Assessment of the screen."

// History is the ordered turn list for one agent task. It is not safe for
// concurrent use; the control loop is the single owner.
type History struct {
	turns []schemas.ConversationTurn
}

func NewHistory() *History {
	return &History{}
}

func (h *History) AppendSystem(text string) {
	h.turns = append(h.turns, schemas.ConversationTurn{Role: schemas.RoleSystem, Text: text})
}

func (h *History) AppendUser(text string) {
	h.turns = append(h.turns, schemas.ConversationTurn{Role: schemas.RoleUser, Text: text})
}

func (h *History) AppendAssistant(text string) {
	h.turns = append(h.turns, schemas.ConversationTurn{Role: schemas.RoleAssistant, Text: text})
}

func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the stored history.
func (h *History) Turns() []schemas.ConversationTurn {
	out := make([]schemas.ConversationTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// RequestTurns builds the per-request payload with the screenshot attached to
// the latest user turn. Images live only on the request view, never in the
// stored history, so exactly one turn per request carries an image. If the
// latest turn is not user-role a stand-in user turn is appended first.
func (h *History) RequestTurns(image string) []schemas.ConversationTurn {
	if n := len(h.turns); n == 0 || h.turns[n-1].Role != schemas.RoleUser {
		h.AppendUser(assessmentMessage)
	}
	view := make([]schemas.ConversationTurn, len(h.turns))
	copy(view, h.turns)
	view[len(view)-1].Images = []string{image}
	return view
}
