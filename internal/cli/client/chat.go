package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// exitWords end an interactive chat.
var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true}

// ChatRequest mirrors the POST /chat body.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	UserLabel string `json:"user_label,omitempty"`
}

// ChatReply mirrors the POST /chat response data.
type ChatReply struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Route     string   `json:"route"`
	Notices   []string `json:"notices"`
}

// Turn is one stored message of a session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionHistory mirrors the GET /sessions/{id} response data.
type SessionHistory struct {
	SessionID string `json:"session_id"`
	History   []Turn `json:"history"`
}

const ndjsonContentType = "application/x-ndjson"

// chatEvent is one line of a streamed /chat reply.
type chatEvent struct {
	Type    string     `json:"type"`
	Message string     `json:"message,omitempty"`
	Data    *ChatReply `json:"data,omitempty"`
}

// Chat sends one question and streams the reply. onNotice, when set, is
// called for every progress notice as soon as the server emits it, before
// the answer is known. Servers that answer with a plain envelope still work;
// their notices are replayed through onNotice before Chat returns.
func (c *APIClient) Chat(ctx context.Context, req ChatRequest, onNotice func(string)) (*ChatReply, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", ndjsonContentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 && strings.HasPrefix(resp.Header.Get("Content-Type"), ndjsonContentType) {
		return readChatStream(resp.Body, onNotice)
	}

	apiResp, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	var reply ChatReply
	if err := json.Unmarshal(apiResp.Data, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	if onNotice != nil {
		for _, notice := range reply.Notices {
			onNotice(notice)
		}
	}
	return &reply, nil
}

func readChatStream(r io.Reader, onNotice func(string)) (*ChatReply, error) {
	dec := json.NewDecoder(r)
	for {
		var event chatEvent
		if err := dec.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("chat stream ended without an answer")
			}
			return nil, fmt.Errorf("failed to parse chat stream: %w", err)
		}

		switch event.Type {
		case "notice":
			if onNotice != nil {
				onNotice(event.Message)
			}
		case "answer":
			if event.Data == nil {
				return nil, errors.New("chat stream answer carried no data")
			}
			return event.Data, nil
		}
	}
}

// History fetches the stored turns of a session.
func (c *APIClient) History(ctx context.Context, sessionID string) (*SessionHistory, error) {
	resp, err := c.Get(ctx, "/sessions/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	var history SessionHistory
	if err := json.Unmarshal(resp.Data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse session history: %w", err)
	}
	return &history, nil
}

// ResetSession clears the stored turns of a session.
func (c *APIClient) ResetSession(ctx context.Context, sessionID string) error {
	_, err := c.Delete(ctx, "/sessions/"+url.PathEscape(sessionID))
	return err
}

// resolveSession picks the session id from flag, env or global config. When
// none is set a new id is generated and remembered for the next invocation.
func resolveSession(cmd *cobra.Command) (string, error) {
	var flagValue string
	if cmd != nil {
		flagValue, _ = cmd.Flags().GetString("session")
	}

	id, source, err := resolve(flagValue, envSession, func(c *GlobalConfig) string { return c.SessionID }, "")
	if err != nil {
		return "", err
	}
	if source != SourceDefault {
		return id, nil
	}

	id = uuid.NewString()
	if err := rememberSession(id); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not save session id: %v\n", err)
	}
	return id, nil
}

func rememberSession(id string) error {
	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	if config == nil {
		config = &GlobalConfig{}
	}
	config.SessionID = id
	return SaveGlobalConfig(config)
}

func resolveUserLabel(cmd *cobra.Command) string {
	var flagValue string
	if cmd != nil {
		flagValue, _ = cmd.Flags().GetString("user")
	}
	label, _, err := resolve(flagValue, envUserLabel, func(c *GlobalConfig) string { return c.UserLabel }, "")
	if err != nil {
		return flagValue
	}
	return label
}

// ChatCmd starts an interactive conversation.
func ChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long:  `Opens a conversation with the tender assistant. Type "salir" to leave.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			sessionID, err := resolveSession(cmd)
			if err != nil {
				return err
			}
			return runChatLoop(cmd.Context(), api, sessionID, resolveUserLabel(cmd), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().String("user", "", "Name shown to the assistant")

	return cmd
}

// AskCmd sends a single question.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long:  "Sends one question within the current session and prints the answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			sessionID, err := resolveSession(cmd)
			if err != nil {
				return err
			}
			req := ChatRequest{
				SessionID: sessionID,
				Query:     strings.Join(args, " "),
				UserLabel: resolveUserLabel(cmd),
			}
			return runAsk(cmd.Context(), api, req, outputJSON, cmd.OutOrStdout())
		},
	}

	addSessionFlags(cmd)
	cmd.Flags().String("user", "", "Name shown to the assistant")

	return cmd
}

// HistoryCmd prints the stored turns of the session.
func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			sessionID, err := resolveSession(cmd)
			if err != nil {
				return err
			}
			return runHistory(cmd.Context(), api, sessionID, outputJSON, cmd.OutOrStdout())
		},
	}

	addSessionFlags(cmd)

	return cmd
}

// ResetCmd clears the conversation history.
func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			sessionID, err := resolveSession(cmd)
			if err != nil {
				return err
			}
			if err := api.ResetSession(cmd.Context(), sessionID); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s cleared\n", sessionID)
			return nil
		},
	}

	addSessionFlags(cmd)

	return cmd
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session id (overrides env and config)")
}

func runAsk(ctx context.Context, api *APIClient, req ChatRequest, outputJSON bool, out io.Writer) error {
	var onNotice func(string)
	if !outputJSON {
		onNotice = noticePrinter(out)
	}

	reply, err := api.Chat(ctx, req, onNotice)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(reply, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, reply.Answer)
	return nil
}

func runHistory(ctx context.Context, api *APIClient, sessionID string, outputJSON bool, out io.Writer) error {
	history, err := api.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}

	if outputJSON {
		data, _ := json.MarshalIndent(history, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(history.History) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return nil
	}
	for _, turn := range history.History {
		speaker := "Tú"
		if turn.Role != "user" {
			speaker = "IA"
		}
		fmt.Fprintf(out, "%s: %s\n", speaker, turn.Content)
	}
	return nil
}

func runChatLoop(ctx context.Context, api *APIClient, sessionID, label string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintf(out, "Sesión %s. Escribe \"salir\" para terminar.\n", sessionID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			return nil
		}

		reply, err := api.Chat(ctx, ChatRequest{SessionID: sessionID, Query: line, UserLabel: label}, noticePrinter(out))
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Answer)
	}
}

// noticePrinter shows progress notices as they arrive.
func noticePrinter(out io.Writer) func(string) {
	return func(notice string) {
		fmt.Fprintf(out, "⏳ %s\n", notice)
	}
}
