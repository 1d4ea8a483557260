// ABOUTME: Chat and regenerate commands running turns against a conversation
// ABOUTME: Without a message argument chat reads lines from stdin until EOF
package commands

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/roleplay-core/internal/app"
	"github.com/harper/roleplay-core/internal/core"
	"github.com/harper/roleplay-core/internal/gateway"
)

var (
	chatUser   string
	chatTools  bool
	chatImages []string
)

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <conversation-id> [message]",
		Short: "Send a message to a character",
		Long: `Send a message to a character and print the reply.

With no message argument, chat reads one message per line from stdin and
prints each reply until EOF. Images may be attached by path or URL.

Examples:
  roleplay chat ayla "Where does this road lead?"
  roleplay chat ayla --tools "What is the weather in Lisbon today?"
  roleplay chat ayla --image map.png "What do you make of this?"
  roleplay chat ayla`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runChat,
	}

	cmd.Flags().StringVar(&chatUser, "user", "", "Your name, substituted for {{user}}")
	cmd.Flags().BoolVar(&chatTools, "tools", false, "Allow memory recall and web search augmentation")
	cmd.Flags().StringArrayVar(&chatImages, "image", nil, "Image path or URL to attach (repeatable)")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	id := args[0]

	images, err := loadImages(chatImages)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	opts := core.ChatOptions{UserName: chatUser, Tools: chatTools, Images: images}

	if len(args) == 2 {
		return chatTurn(cmd, a, id, args[1], opts)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if !quiet {
			fmt.Fprint(cmd.OutOrStdout(), "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := chatTurn(cmd, a, id, line, opts); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		// images go with the first turn only
		opts.Images = nil
	}
	return scanner.Err()
}

func chatTurn(cmd *cobra.Command, a *app.App, id, message string, opts core.ChatOptions) error {
	reply, err := a.Orchestrator.ContinueChat(cmd.Context(), id, message, opts)
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"conversation_id": id, "reply": reply})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", reply)
	return nil
}

// loadImages turns paths into inline parts; URLs are fetched later by the gateway
func loadImages(refs []string) ([]gateway.Part, error) {
	var parts []gateway.Part
	for _, ref := range refs {
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			parts = append(parts, gateway.Part{ImageURL: ref})
			continue
		}
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(ref))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, fmt.Errorf("%s is not an image (%s)", ref, mimeType)
		}
		parts = append(parts, gateway.Part{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return parts, nil
}

// NewRegenerateCmd creates the regenerate command
func NewRegenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate <conversation-id> <index>",
		Short: "Regenerate an AI reply",
		Long: `Discard an AI reply and everything after it, then generate a new reply
to the same user message. Indexes are shown by 'roleplay history'.

Examples:
  roleplay regenerate ayla 3`,
		Args: cobra.ExactArgs(2),
		RunE: runRegenerate,
	}

	cmd.Flags().StringVar(&chatUser, "user", "", "Your name, substituted for {{user}}")

	return cmd
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	reply, err := a.Orchestrator.RegenerateFromMessage(cmd.Context(), args[0], index, core.ChatOptions{UserName: chatUser})
	if err != nil {
		return err
	}
	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{"conversation_id": args[0], "index": index, "reply": reply})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", reply)
	return nil
}
