package main

// Output schema names accepted by --schema.
const (
	schemaText        = "text"
	schemaHello       = "hello"
	schemaWeather     = "weather"
	schemaFile        = "file"
	schemaInspiration = "inspiration"
)

func schemaNames() []string {
	return []string{schemaText, schemaHello, schemaWeather, schemaFile, schemaInspiration}
}

// HelloWorld scores the sentiment of a message.
type HelloWorld struct {
	MessageSentiment int  `json:"message_sentiment" jsonschema_description:"How positive is this message from 1 = very negative, 10 = very positive"`
	ExpectsResponse  bool `json:"expects_response" jsonschema_description:"Does the writer expect a response?"`
}

// Weather is a haiku and a report about the current weather.
type Weather struct {
	ToolResults map[string]any `json:"tool_results,omitempty" jsonschema_description:"Results from tool calls"`
	Haiku       *string        `json:"haiku,omitempty" jsonschema_description:"Haiku about the weather"`
	Report      *string        `json:"report,omitempty" jsonschema_description:"Weather report, official"`
}

// FileAnalysis is what a model extracted from an attached file.
type FileAnalysis struct {
	TextContent    string  `json:"text_content" jsonschema_description:"The full text content extracted from the file"`
	ContentSummary string  `json:"content_summary" jsonschema_description:"A concise summary of the file's main content and purpose"`
	Key            *string `json:"key,omitempty" jsonschema_description:"The key of the key/value pair mentioned in the file, if any"`
	Value          *string `json:"value,omitempty" jsonschema_description:"The value of the key/value pair mentioned in the file, if any"`
}

// Inspiration is a quote and its author.
type Inspiration struct {
	Quote  string `json:"quote" jsonschema_description:"The generated inspirational quote."`
	Author string `json:"author" jsonschema_description:"The author of the quote. If unknown, should be 'Anonymous'."`
}
