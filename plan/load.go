package plan

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/use-agent/pageshot/models"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a plan file. YAML is expected; JSON works too,
// since it is valid YAML.
func Load(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewVerificationError(models.ErrCodeInvalidInput, "",
			"cannot read plan file "+path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a plan document. Unknown fields are rejected
// so typos do not silently drop checks.
func Parse(data []byte) (*models.Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p models.Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, models.NewVerificationError(models.ErrCodeInvalidInput, "", "cannot parse plan", err)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal renders p as YAML, the format Load reads.
func Marshal(p *models.Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
