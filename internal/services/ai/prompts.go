package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NoTool is what the tool selector answers when no file operation was asked for
const NoTool = "NO_TOOL"

// ToolSpec describes one tool offered to the selector
type ToolSpec struct {
	Name        string `json:"-"`
	Description string `json:"description"`
}

// ToolSelectorPrompt asks for either NO_TOOL or a single tool_call object
func ToolSelectorPrompt(tools []ToolSpec, userInput string) string {
	names := make([]string, 0, len(tools))
	descriptions := make(map[string]ToolSpec, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
		descriptions[t.Name] = t
	}
	toolJSON, _ := json.MarshalIndent(descriptions, "", "  ")

	var b strings.Builder
	b.WriteString("You are a tool-selector. If the user explicitly asks to CREATE, UPDATE or LIST a JSON file, ")
	b.WriteString("return exactly one JSON object (no surrounding text) with keys:\n")
	b.WriteString("  - type: \"tool_call\"\n")
	fmt.Fprintf(&b, "  - name: one of: %s\n", strings.Join(names, ", "))
	b.WriteString("  - arguments: an object with arguments\n\n")
	b.WriteString("Generate realistic argument values based on the user's request. ")
	fmt.Fprintf(&b, "If the user did NOT ask for a file operation return exactly: %s\n\n", NoTool)
	fmt.Fprintf(&b, "Tools:\n%s\n\n", toolJSON)
	fmt.Fprintf(&b, "User message:\n%s\n", userInput)
	return b.String()
}

// ContentPrompt asks for a complete document of the given kind
func ContentPrompt(name, kind, userRequest string) string {
	var b strings.Builder
	b.WriteString("You are a JSON content generator. Produce a single JSON object which represents a Notion-like file.\n\n")
	fmt.Fprintf(&b, "Inputs:\n- name: %s\n- type: %s\n- user_request: %s\n\n", name, kind, userRequest)
	b.WriteString(`Rules:
1) Return ONLY valid JSON (no explanatory text).
2) For type 'table', return an object with:
   - "name"
   - "type"
   - "columns": an array of objects {"name": "Column Name", "type": "text"}.
     Allowed column types: text, options, date, number, checkbox. Columns of type options carry "options": ["..."].
   - "values": an array of rows (each row is an array)
   DO NOT leave columns empty. Use fields relevant to the user_request.
3) For type 'todolist', return:
   {"name": "...", "type": "todolist", "items": [{"task": "...", "done": false}] }
4) For type 'habit', return:
   {"name": "...", "type": "habit", "items": [{"habit": "...", "done": false}] }
5) For type 'journal', return:
   {"name": "...", "type": "journal", "entries": [{"date": "YYYY-MM-DD", "text": "..."}] }
6) Make columns and example rows / todos directly relevant to the user_request.
7) Ensure STRICT valid JSON.

Example (table JSON structure):
{"name":"Sprint Plan","type":"table","columns":[{"name":"Task","type":"text"},{"name":"Due","type":"date"}],"values":[["Design UI","2025-12-05"]]}

Now generate the JSON for the request:`)
	return b.String()
}

// RowPrompt asks for one table row matching the given columns
func RowPrompt(columnsJSON, userRequest string) string {
	return fmt.Sprintf("Given the columns JSON: %s\n"+
		"and the user_request: %s\n"+
		"Return exactly one JSON array representing one row that matches the columns.\n"+
		"Dates are YYYY-MM-DD, numbers are plain numbers, checkboxes are true or false.\n"+
		"Return only the JSON array. Example: [\"Task name\",\"In Progress\",\"High\",\"2025-12-01\"]\n",
		columnsJSON, userRequest)
}

// TodoItemPrompt asks for one todo item
func TodoItemPrompt(userRequest string) string {
	return fmt.Sprintf("Given the user_request: %s\n"+
		"Return exactly one JSON object representing a todo item: {\"task\":\"...\",\"done\":false}\n"+
		"Return only that JSON object.", userRequest)
}

// HabitItemPrompt asks for one habit tracker entry
func HabitItemPrompt(userRequest string) string {
	return fmt.Sprintf("Given the user_request: %s\n"+
		"Return exactly one JSON object representing a habit to track: {\"habit\":\"...\",\"done\":false}\n"+
		"Return only that JSON object.", userRequest)
}

// EnhancePrompt asks for a template personalized to a user profile
func EnhancePrompt(templateJSON, profileJSON string) string {
	return "You are an assistant that enhances a JSON template using a user's profile.\n" +
		"Return ONLY valid JSON with **no trailing commas**, **no ...**, **no comments**, " +
		"and the exact same structure as the input template.\n\n" +
		"Input template:\n" + templateJSON + "\n\n" +
		"User profile:\n" + profileJSON + "\n\n" +
		"Rules:\n" +
		"1. KEEP the same keys: name, type, columns, values, items, etc.\n" +
		"2. NEVER add unknown keys.\n" +
		"3. ONLY modify the rows/items to be personalized.\n" +
		"4. Return only JSON, no explanation.\n"
}

// ChatSystemPrompt frames the free-form conversation
const ChatSystemPrompt = "You are a friendly assistant inside a workspace of small documents: tables, todo lists, " +
	"habit trackers and journals. Answer conversationally. When the user wants a file created, updated or listed, " +
	"tell them to ask for it directly."
