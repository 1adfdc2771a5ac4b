// Command chat-client is a minimal, non-interactive reference client: it
// connects, sends Hello, optionally joins a room, then relays stdin lines
// as room messages and prints every Response it receives on stdout. It
// exists to exercise the wire protocol end-to-end, not as a user-facing
// chat UI.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brady131313/rschat/client"
	"github.com/brady131313/rschat/internal/protocol"
)

// keepAliveInterval must stay well under the server's reaper interval
// (KEEP_ALIVE_CHECK) so an idle client never gets evicted.
const keepAliveInterval = 3 * time.Second

func main() {
	addr := flag.String("a", "127.0.0.1:4000", "server address")
	username := flag.String("u", "", "username (required)")
	room := flag.String("room", "", "room to join on connect (optional)")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-client -u <username> [-a addr] [-room name]")
		os.Exit(2)
	}

	c, err := client.Connect(*addr, *username)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.Hello(); err != nil {
		log.Fatalf("hello: %v", err)
	}

	if *room != "" {
		if err := c.WriteCommand(protocol.JoinOrCreate{Room: *room}); err != nil {
			log.Fatalf("join: %v", err)
		}
	}

	go printResponses(c)
	go sendKeepAlives(c)
	readStdinCommands(c, *room)
}

// sendKeepAlives keeps the server's liveness check satisfied while the
// user is idle at the prompt.
func sendKeepAlives(c *client.Client) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := c.WriteCommand(protocol.KeepAlive{}); err != nil {
			return
		}
	}
}

// printResponses prints every Response the server sends until the
// connection ends, then exits the process — stdin has nothing left to
// drive once the peer is gone.
func printResponses(c *client.Client) {
	for {
		resp, err := c.ReadResponse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
			os.Exit(0)
		}
		fmt.Println(formatResponse(resp))
	}
}

// readStdinCommands treats each stdin line as a message to defaultRoom
// (if set) or parses "/"-prefixed lines as protocol commands. A /join
// makes the joined room the new defaultRoom.
func readStdinCommands(c *client.Client, defaultRoom string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := parseLine(line, defaultRoom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if err := c.WriteCommand(cmd); err != nil {
			log.Fatalf("write: %v", err)
		}
		if join, ok := cmd.(protocol.JoinOrCreate); ok {
			defaultRoom = join.Room
		}
	}
}

func parseLine(line, defaultRoom string) (protocol.Command, error) {
	if !strings.HasPrefix(line, "/") {
		if defaultRoom == "" {
			return nil, fmt.Errorf("no room joined; use /join <room> first")
		}
		return protocol.Send{Target: protocol.RoomTarget{Name: defaultRoom}, Message: line}, nil
	}

	fields := strings.SplitN(line[1:], " ", 2)
	switch fields[0] {
	case "join":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: /join <room>")
		}
		return protocol.JoinOrCreate{Room: fields[1]}, nil
	case "leave":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: /leave <room>")
		}
		return protocol.Leave{Room: fields[1]}, nil
	case "rooms":
		return protocol.ListRooms{}, nil
	case "users":
		return protocol.ListUsers{}, nil
	case "msg":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: /msg <user> <message>")
		}
		parts := strings.SplitN(fields[1], " ", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: /msg <user> <message>")
		}
		return protocol.Send{Target: protocol.UsernameTarget{Name: parts[0]}, Message: parts[1]}, nil
	default:
		return nil, fmt.Errorf("unknown command: /%s", fields[0])
	}
}

func formatResponse(r protocol.Response) string {
	switch v := r.(type) {
	case protocol.ListMembers:
		return fmt.Sprintf("[%s] members: %s", v.Room, strings.Join(v.Users, ", "))
	case protocol.ListRoomsResponse:
		return fmt.Sprintf("rooms: %s", strings.Join(v.Rooms, ", "))
	case protocol.ListUsersResponse:
		return fmt.Sprintf("users: %s", strings.Join(v.Users, ", "))
	case protocol.TellRoom:
		return fmt.Sprintf("[%s] %s: %s", v.Room, v.Sender, v.Message)
	case protocol.TellUser:
		return fmt.Sprintf("(direct) %s: %s", v.Sender, v.Message)
	case protocol.KeepAliveResponse:
		return "<keep-alive>"
	case protocol.Err:
		return fmt.Sprintf("error: %s", formatResponseError(v.Kind))
	default:
		return fmt.Sprintf("%#v", v)
	}
}

func formatResponseError(e protocol.ResponseError) string {
	switch v := e.(type) {
	case protocol.UserAlreadyExists:
		return fmt.Sprintf("user %q already exists", v.Name)
	case protocol.RoomDoesNotExist:
		return fmt.Sprintf("room %q does not exist", v.Name)
	case protocol.UserNotInRoom:
		return fmt.Sprintf("%q is not in room %q", v.User, v.Room)
	default:
		return fmt.Sprintf("%#v", v)
	}
}
