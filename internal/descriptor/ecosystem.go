package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
)

// ecosystemApp is one process entry in the PM2-compatible ecosystem file.
type ecosystemApp struct {
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Interpreter string            `json:"interpreter,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Args        string            `json:"args,omitempty"`
	Autorestart bool              `json:"autorestart"`
}

// ecosystemFile is the top-level document the process manager loads.
type ecosystemFile struct {
	Apps []ecosystemApp `json:"apps"`
}

// MarshalEcosystem renders the descriptor set as a PM2-compatible
// ecosystem document. The process manager re-evaluates the file on every
// reload, which is when a fresh run identifier takes effect.
func MarshalEcosystem(defs []Definition) ([]byte, error) {
	doc := ecosystemFile{Apps: make([]ecosystemApp, 0, len(defs))}
	for _, d := range defs {
		doc.Apps = append(doc.Apps, ecosystemApp{
			Name:        d.Name.String(),
			Script:      d.Script,
			Interpreter: d.Interpreter,
			Env:         d.Env,
			Args:        d.ArgString(),
			Autorestart: true,
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ecosystem: %w", err)
	}
	return append(out, '\n'), nil
}

// WriteEcosystem writes the ecosystem document to path.
func WriteEcosystem(defs []Definition, path string) error {
	out, err := MarshalEcosystem(defs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write ecosystem %s: %w", path, err)
	}
	return nil
}
