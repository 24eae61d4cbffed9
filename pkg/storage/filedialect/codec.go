package filedialect

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of one table: target -> column -> value.
type document map[string]map[string]string

// codec encodes documents in one file format.
type codec interface {
	extension() string
	marshal(doc document) ([]byte, error)
	unmarshal(data []byte, doc *document) error
}

type jsonCodec struct{}

func (jsonCodec) extension() string { return ".json" }

func (jsonCodec) marshal(doc document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) unmarshal(data []byte, doc *document) error {
	return json.Unmarshal(data, doc)
}

type yamlCodec struct{}

func (yamlCodec) extension() string { return ".yaml" }

func (yamlCodec) marshal(doc document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func (yamlCodec) unmarshal(data []byte, doc *document) error {
	return yaml.Unmarshal(data, doc)
}
