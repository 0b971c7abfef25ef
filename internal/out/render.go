package out

import (
	"encoding/json"
	"io"

	"github.com/gustavo/comet-kit/internal/model"
)

// Render writes the envelope as indented JSON, one document per command run.
func Render(w io.Writer, env model.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
