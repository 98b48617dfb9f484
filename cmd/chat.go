package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/chat"
	"github.com/consulthub/consulthub-api/chat/client"
	"github.com/consulthub/consulthub-api/logging"
	"github.com/consulthub/consulthub-api/models"
)

var (
	flagChatURL     string
	flagChatToken   string
	flagChatRoom    string
	flagChatCall    string
	flagChatAnswer  bool
	flagChatSTUN    string
	flagChatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join a consultation room from the terminal",
	Long: `Connect to a gateway, join a consultation room and send every line read
from stdin as a message. Lines starting with a slash are commands:

  /voice, /video   start a call
  /accept          accept the incoming call
  /reject          reject the incoming call
  /hangup          end the current call
  /leave           leave the room and quit

Examples:
  consulthub-api chat --token $TOKEN --room 42
  consulthub-api chat --url wss://chat.example.com/api/chat --token $TOKEN --room 42 --call video`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch flagChatCall {
		case "", "voice", "video":
		default:
			return fmt.Errorf("--call must be voice or video, got %q", flagChatCall)
		}
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVar(&flagChatURL, "url", "ws://localhost:8080/api/chat", "gateway websocket URL")
	chatCmd.Flags().StringVar(&flagChatToken, "token", os.Getenv("CHAT_TOKEN"), "bearer token, defaults to $CHAT_TOKEN")
	chatCmd.Flags().StringVar(&flagChatRoom, "room", "", "consultation id to join")
	chatCmd.Flags().StringVar(&flagChatCall, "call", "", "start a voice or video call after joining")
	chatCmd.Flags().BoolVar(&flagChatAnswer, "answer", false, "accept incoming calls automatically")
	chatCmd.Flags().StringVar(&flagChatSTUN, "stun", "stun:stun.l.google.com:19302", "STUN server for calls")
	chatCmd.Flags().BoolVarP(&flagChatVerbose, "verbose", "v", false, "debug logging")
	_ = chatCmd.MarkFlagRequired("room")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := logging.New(flagChatVerbose)
	defer logger.Sync()
	zap.ReplaceGlobals(logger.Desugar())

	if flagChatToken == "" {
		return fmt.Errorf("no token given, use --token or CHAT_TOKEN")
	}
	roomID := chat.RoomID(flagChatRoom)

	h := &client.Handler{
		OnMessage: func(msg models.ChatMessage) {
			fmt.Fprintf(out, "[%s] %s: %s\n", msg.CreatedAt, msg.Sender.Name, msg.Content)
		},
		OnTyping: func(userID string, isTyping bool) {
			if isTyping {
				fmt.Fprintf(out, "%s is typing...\n", userID)
			}
		},
		OnUserJoined: func(userID string) { fmt.Fprintf(out, "%s joined\n", userID) },
		OnUserLeft:   func(userID string) { fmt.Fprintf(out, "%s left\n", userID) },
		OnVoiceCall:  func(json.RawMessage) { fmt.Fprintln(out, "incoming voice call, /accept or /reject") },
		OnVideoCall:  func(json.RawMessage) { fmt.Fprintln(out, "incoming video call, /accept or /reject") },
		OnError:      func(message string) { fmt.Fprintf(out, "error: %s\n", message) },
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	c, err := client.Dial(dialCtx, flagChatURL, flagChatToken, h)
	if err != nil {
		return err
	}
	defer c.Close()

	call := client.NewCall(c, roomID, []pion.ICEServer{{URLs: []string{flagChatSTUN}}})
	defer call.Close()
	call.OnStateChange(func(s client.CallState) {
		fmt.Fprintf(out, "call %s\n", s)
		if s == client.CallReceiving && flagChatAnswer {
			if err := call.Accept(); err != nil {
				logger.Warnw("failed to accept call", "error", err)
			}
		}
	})
	h.Bind(call)

	if err := c.JoinRoom(roomID); err != nil {
		return err
	}
	fmt.Fprintf(out, "connected as %s, joined %s\n", c.UserID(), roomID)

	if flagChatCall != "" {
		if err := call.Start(flagChatCall == "video"); err != nil {
			return err
		}
	}

	typing := client.NewTypingDebouncer(c, roomID, client.TypingIdle)
	defer typing.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return c.LeaveRoom(roomID)
		case <-c.Done():
			return fmt.Errorf("connection to gateway lost")
		case line, ok := <-lines:
			if !ok {
				return c.LeaveRoom(roomID)
			}
			quit, err := chatLine(c, call, typing, roomID, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// chatLine handles one line of input, reporting whether the user asked to quit
func chatLine(c *client.Client, call *client.Call, typing *client.TypingDebouncer, roomID, line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case "/voice":
		return false, call.Start(false)
	case "/video":
		return false, call.Start(true)
	case "/accept":
		return false, call.Accept()
	case "/reject":
		return false, call.Reject()
	case "/hangup":
		return false, call.End()
	case "/leave":
		return true, c.LeaveRoom(roomID)
	}
	typing.Keystroke()
	if err := c.SendMessage(roomID, line); err != nil {
		return false, err
	}
	typing.Stop()
	return false, nil
}
