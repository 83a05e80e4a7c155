package feedback

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of Result, suitable for structured output
// requests.
var Schema = sync.OnceValue(func() json.RawMessage {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := reflector.Reflect(&Result{})
	s.Version = ""
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return b
})
