package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"celestetracker.ai/internal/protocol"
)

func TestSchemas_ValidateOutbound(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("connect.schema.json"), protocol.NewConnect("Player1", "", "0b6f8a9e-2a7c-4d8e-9d6a-5b1d6f0b8a11"))
	validate(compile("get_data_package.schema.json"), protocol.NewGetDataPackage())
	validate(compile("get.schema.json"), protocol.NewGet(protocol.KeyCheckedLocations))
	validate(compile("location_checks.schema.json"), protocol.NewLocationChecks(500, 501))

	frame, err := protocol.EncodeFrame(protocol.NewGetDataPackage(), protocol.NewGet(protocol.KeyCheckedLocations))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	var v any
	if err := json.Unmarshal(frame, &v); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if err := compile("frame.schema.json").Validate(v); err != nil {
		t.Fatalf("validate frame %s: %v", frame, err)
	}
}
