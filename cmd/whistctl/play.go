package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/whist-client/internal/bridge"
	"github.com/DoyleJ11/whist-client/internal/session"
	"github.com/DoyleJ11/whist-client/pkg/types"
)

const frame = time.Second / 30

var playFlags struct {
	username string
	password string
	github   bool
	room     string
	roomPass string
	create   string
	start    bool
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Log in, enter a room and follow its stream",
	Long: `play logs in (with a password or the GitHub device flow), resumes the room
the user is still in or joins/creates one, then prints every room message.
Lines typed on stdin are sent to the room as chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !playFlags.github && playFlags.username == "" {
			return fmt.Errorf("either --user or --github is required")
		}
		scfg, err := sessionConfig()
		if err != nil {
			return err
		}

		h := session.Spawn(cmd.Context(), scfg)
		defer h.Close()

		p := &player{h: h, out: cmd.OutOrStdout(), chat: readLines(cmd.InOrStdin())}
		if err := h.Send(session.Connect{URL: cfg.ServerURL}); err != nil {
			return err
		}

		ticker := time.NewTicker(frame)
		defer ticker.Stop()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
			done, err := p.tick()
			if done || err != nil {
				return err
			}
		}
	},
}

// player reacts to responses once per frame, the way a game loop would.
type player struct {
	h      *session.Handle
	out    io.Writer
	chat   <-chan string
	inRoom bool
}

func (p *player) tick() (bool, error) {
	for {
		res, status := p.h.Poll()
		if status == bridge.Closed {
			return true, nil
		}
		if status == bridge.Empty {
			break
		}
		if err := p.respond(res); err != nil {
			return true, err
		}
	}

	for {
		ev, status := p.h.PollEvent()
		if status != bridge.Message {
			break
		}
		p.show(ev)
	}

	if p.inRoom {
		select {
		case line, ok := <-p.chat:
			if !ok {
				return true, nil
			}
			return false, p.h.Send(session.SendRoomMessage{Message: types.ClientMessage{Type: "Chat", Text: line}})
		default:
		}
	}
	return false, nil
}

func (p *player) respond(res session.Response) error {
	switch r := res.(type) {
	case session.ConnectResult:
		if r.Err != nil {
			return r.Err
		}
		fmt.Fprintf(p.out, "connected to %s (core %s, server %s)\n", r.Info.Game, r.Info.CoreVersion, r.Info.ServerVersion)
		if playFlags.github {
			return p.h.Send(session.GithubAuthRequest{})
		}
		return p.h.Send(session.Login{Username: playFlags.username, Password: playFlags.password})

	case session.LoginResult:
		switch {
		case r.Err != nil:
			return r.Err
		case r.Waiting():
			fmt.Fprintf(p.out, "open %s and enter %s, then press enter\n", r.DeviceFlow.VerificationURI, r.DeviceFlow.UserCode)
			// The device code is swapped once the user confirms.
			go func() {
				<-p.chat
				_ = p.h.Send(session.SwapToken{})
			}()
		default:
			fmt.Fprintln(p.out, "logged in")
		}

	case session.RoomReconnectResult:
		switch {
		case r.Err != nil:
			return r.Err
		case r.Outcome == session.OutcomeJoinWindow:
			fmt.Fprintf(p.out, "room %s needs its password again\n", r.RoomID)
			return p.h.Send(session.JoinRoom{ID: r.RoomID, Password: playFlags.roomPass})
		case r.Outcome == session.OutcomeLobby:
			return p.enter(r.RoomID)
		}

	case session.RoomListResult:
		if r.Err != nil {
			return r.Err
		}
		fmt.Fprintf(p.out, "%d open rooms: %v\n", len(r.Rooms), r.Rooms)
		switch {
		case playFlags.create != "":
			return p.h.Send(session.CreateRoom{Name: playFlags.create, Password: playFlags.roomPass})
		case playFlags.room != "":
			return p.h.Send(session.JoinRoom{ID: playFlags.room, Password: playFlags.roomPass})
		}
		return fmt.Errorf("no room to resume; pass --room or --create")

	case session.RoomJoinResult:
		if r.Err != nil {
			return r.Err
		}
		return p.enter(r.RoomID)

	case session.RoomCreateResult:
		if r.Err != nil {
			return r.Err
		}
		return p.enter(r.RoomID)

	case session.RoomStartResult:
		if r.Err != nil {
			fmt.Fprintf(p.out, "cannot start yet: %v\n", r.Err)
			return nil
		}
		fmt.Fprintln(p.out, "game started")

	case session.RoomMessageResult:
		if r.Err != nil {
			logger.Warn("chat not sent", zap.Error(r.Err))
		}
	}
	return nil
}

func (p *player) enter(roomID string) error {
	p.inRoom = true
	fmt.Fprintf(p.out, "in room %s\n", roomID)
	if playFlags.start {
		return p.h.Send(session.StartRoom{})
	}
	return nil
}

func (p *player) show(ev session.Event) {
	switch e := ev.(type) {
	case session.RoomEvent:
		msg, err := e.Decode()
		if err != nil {
			logger.Warn("undecodable room message", zap.Error(err))
			return
		}
		switch msg.Type {
		case "RoomSnapshot":
			if msg.Room == nil {
				return
			}
			fmt.Fprintf(p.out, "[v%d] %s: %d/%d players, %s\n", msg.Version, msg.Room.Name, len(msg.Room.Players), msg.Room.MaxPlayer, msg.Room.Phase)
		case "Chat":
			fmt.Fprintf(p.out, "<%s> %s\n", msg.From, msg.Text)
		case "Error":
			fmt.Fprintf(p.out, "server: %s\n", msg.Error)
		}
	case session.StreamClosed:
		p.inRoom = false
		if e.Err != nil {
			fmt.Fprintf(p.out, "room stream lost: %v\n", e.Err)
		}
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func init() {
	f := playCmd.Flags()
	f.StringVar(&playFlags.username, "user", "", "username")
	f.StringVar(&playFlags.password, "password", os.Getenv("WHIST_PASSWORD"), "password (default $WHIST_PASSWORD)")
	f.BoolVar(&playFlags.github, "github", false, "log in with the GitHub device flow")
	f.StringVar(&playFlags.room, "room", "", "room id to join when none can be resumed")
	f.StringVar(&playFlags.roomPass, "room-password", "", "room password")
	f.StringVar(&playFlags.create, "create", "", "create a room with this name when none can be resumed")
	f.BoolVar(&playFlags.start, "start", false, "start the game once in the room")
	rootCmd.AddCommand(playCmd)
}
