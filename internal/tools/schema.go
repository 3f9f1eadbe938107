package tools

// Tool parameter schemas, handed to the provider verbatim as each tool
// definition's JSON Schema.
var (
	schemaReadFile = []byte(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"startLine": {"type": "integer"},
			"endLine": {"type": "integer"}
		},
		"required": ["path"]
	}`)

	schemaWriteFile = []byte(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"},
			"allowCreate": {"type": "boolean"}
		},
		"required": ["path", "content"]
	}`)

	schemaApplyPatch = []byte(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"search": {"type": "string"},
			"replace": {"type": "string"},
			"replaceAll": {"type": "boolean"}
		},
		"required": ["path", "search", "replace"]
	}`)

	schemaListFiles = []byte(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"glob": {"type": "string"}
		}
	}`)

	schemaSearchWorkspace = []byte(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"path": {"type": "string"}
		},
		"required": ["query"]
	}`)

	schemaRunShell = []byte(`{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"cwd": {"type": "string"},
			"timeoutMs": {"type": "integer"}
		},
		"required": ["command"]
	}`)
)
