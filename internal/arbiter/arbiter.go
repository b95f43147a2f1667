package arbiter

import (
	"context"
	"errors"

	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

// ErrNoCandidates is returned when there is nothing to choose from.
var ErrNoCandidates = errors.New("no candidates to judge")

// Verdict is the candidate a Judge settled on.
type Verdict struct {
	Service   string
	Text      string
	Reasoning string
}

// Judge chooses the best of several translations of one UI string. It only
// picks among the candidates; it never writes text of its own.
type Judge interface {
	Pick(ctx context.Context, source, targetLang string, role validator.Role, candidates []translator.ServiceResult) (*Verdict, error)
}
