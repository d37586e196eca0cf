package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	defaultServerURL = "http://localhost:8080"
	clientID         = "receipt-cli"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func main() {
	var serverURL, sessionID, token string
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.StringVar(&sessionID, "session", os.Getenv("RECEIPT_SESSION"), "Session ID (default $RECEIPT_SESSION)")
	flag.StringVar(&token, "token", os.Getenv("RECEIPT_TOKEN"), "Bearer token (default $RECEIPT_TOKEN)")
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &client{
		baseURL: strings.TrimSuffix(serverURL, "/") + "/api/v1",
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
	args := flag.Args()

	var err error
	switch args[0] {
	case "templates":
		err = c.listTemplates()
	case "open":
		if len(args) != 2 {
			err = fmt.Errorf("usage: open <template-id>")
			break
		}
		err = c.open(args[1])
	default:
		if sessionID == "" {
			err = fmt.Errorf("no session: run 'open <template-id>' and pass -session or set RECEIPT_SESSION")
			break
		}
		err = c.command(sessionID, strings.Join(quoteArgs(args), " "))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Receipt Studio CLI

Usage:
  receipt-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)
  -session <id>        Session to edit (default: $RECEIPT_SESSION)
  -token <jwt>         Sign in for save, download and credits (default: $RECEIPT_TOKEN)

Commands:
  templates                          List receipt templates
  open <template-id>                 Start an editing session and print its id
  show                               Print the receipt and its sections
  add <type> [after]                 Add a section
  set <section> <op> key=value...    Edit a section
  settings key=value...              Change currency, font, paper size...
  remove|dup <section>               Remove or duplicate a section
  move <from> <to>                   Reorder sections
  export [json|pdf|png]              Render the receipt
  save                               Save to your account
  print                              Send to the configured printer
  help                               Show all edit operations

Examples:
  export RECEIPT_SESSION=$(receipt-cli open walgreens)
  receipt-cli set 3 update_item index=0 quantity=2 name=Soda price=1.50
  receipt-cli settings paper_size=58mm
  receipt-cli export pdf

`, defaultServerURL)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// CommandResult mirrors the server's command response.
type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func (c *client) do(method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", clientID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *client) api(method, path string, body, out interface{}) error {
	data, _, err := c.do(method, path, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		for _, fe := range env.Errors {
			msg += fmt.Sprintf("\n  %s: %s", fe.Field, fe.Message)
		}
		return fmt.Errorf("%s", msg)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *client) listTemplates() error {
	var out struct {
		Templates []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
		} `json:"templates"`
	}
	if err := c.api(http.MethodGet, "/templates", nil, &out); err != nil {
		return err
	}
	for _, t := range out.Templates {
		fmt.Printf("%-20s %-30s %s\n", t.ID, t.Name, t.Category)
	}
	return nil
}

func (c *client) open(templateID string) error {
	var sess struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}
	if err := c.api(http.MethodPost, "/sessions", map[string]string{"template_id": templateID}, &sess); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Opened %s from %s\n", templateID, sess.Source)
	fmt.Println(sess.ID)
	return nil
}

func (c *client) command(sessionID, command string) error {
	data, _, err := c.do(http.MethodPost, "/sessions/"+sessionID+"/command", map[string]string{"command": command})
	if err != nil {
		return err
	}

	var result CommandResult
	if err := json.Unmarshal(data, &result); err != nil || (!result.Success && result.Error == "") {
		// Not a command result: the session lookup itself failed.
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			return fmt.Errorf("%s", env.Message)
		}
		return fmt.Errorf("unexpected response: %s", data)
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	printSuccess(&result)
	return nil
}

func printSuccess(result *CommandResult) {
	if result.Message != "" {
		fmt.Println(result.Message)
	}

	if sections, ok := result.Data["sections"].([]interface{}); ok {
		fmt.Println("Sections:")
		for i, s := range sections {
			if sec, ok := s.(map[string]interface{}); ok {
				fmt.Printf("  %2d  %-16v %v\n", i, sec["type"], sec["id"])
			}
		}
	}

	if doc, ok := result.Data["document"]; ok {
		out, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(out))
		return
	}

	keys := make([]string, 0, len(result.Data))
	for k := range result.Data {
		if k != "sections" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %v\n", k, result.Data[k])
	}
}

// quoteArgs restores quoting the shell removed so values with spaces stay
// one argument on the server.
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if !strings.ContainsAny(a, " \t") {
			out[i] = a
			continue
		}
		if k, v, ok := strings.Cut(a, "="); ok && !strings.ContainsAny(k, " \t") {
			out[i] = k + `="` + v + `"`
			continue
		}
		out[i] = `"` + a + `"`
	}
	return out
}
