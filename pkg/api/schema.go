package api

import (
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema names passed to Client.do. Each names an embedded response schema.
const (
	schemaSectionList      = "section_list"
	schemaProgressOverview = "progress_overview"
	schemaSession          = "session"
	schemaMessageList      = "message_list"
	schemaMessage          = "message"
	schemaProfile          = "profile"
)

// Response schemas are deliberately loose: they pin the envelope shape and
// required keys, not every field, so additive server changes do not break
// older clients.
var schemaSources = map[string]string{
	schemaSectionList: `{
		"type": "object",
		"required": ["sections"],
		"properties": {
			"sections": {
				"type": "array",
				"items": {"type": "object", "required": ["id", "title", "display_order"]}
			}
		}
	}`,
	schemaProgressOverview: `{
		"type": "object",
		"required": ["progress", "summary"],
		"properties": {
			"progress": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["section_id", "topic_id", "status"],
					"properties": {
						"status": {"enum": ["not_started", "in_progress", "completed"]}
					}
				}
			},
			"summary": {"type": "object", "required": ["total_topics"]}
		}
	}`,
	schemaSession: `{
		"type": "object",
		"required": ["id", "user_id", "started_at"]
	}`,
	schemaMessageList: `{
		"type": "object",
		"required": ["messages", "pagination"],
		"properties": {
			"messages": {
				"type": "array",
				"items": {"type": "object", "required": ["id", "session_id", "sender", "content"]}
			},
			"pagination": {"type": "object", "required": ["total", "limit", "offset"]}
		}
	}`,
	schemaMessage: `{
		"type": "object",
		"required": ["id", "session_id", "sender", "content"]
	}`,
	schemaProfile: `{
		"type": "object",
		"required": ["id", "login", "email", "has_completed_tutorial"]
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func compileSchemas() {
	compiled = make(map[string]*jsonschema.Schema, len(schemaSources))
	c := jsonschema.NewCompiler()
	for name, src := range schemaSources {
		var doc any
		if err := json.Unmarshal([]byte(src), &doc); err != nil {
			compileErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		url := "mem://" + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			compileErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		sch, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		compiled[name] = sch
	}
}

// validateResponse checks raw against the named schema.
func validateResponse(name string, raw []byte) error {
	compileOnce.Do(compileSchemas)
	if compileErr != nil {
		return compileErr
	}
	sch, ok := compiled[name]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}
