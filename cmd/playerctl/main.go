// Package main provides the player control CLI.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/moodbox/internal/api/connect"
	"github.com/osa030/moodbox/internal/api/upload"
)

var (
	app    = kingpin.New("moodbox-playerctl", "moodbox player control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set MOODBOX_CONTROL_TOKEN env)").Envar("MOODBOX_CONTROL_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show the player state")

	// watch command
	watchCmd   = app.Command("watch", "Stream notifications")
	watchKinds = watchCmd.Flag("kind", "Notification kinds to receive (state, frame, mood, error)").Strings()

	// add commands
	addURLCmd   = app.Command("add-url", "Add a remote track")
	addURLArg   = addURLCmd.Arg("url", "Audio URL").Required().String()
	addURLName  = addURLCmd.Arg("name", "Display name (optional)").String()
	addFileCmd  = app.Command("add-file", "Upload local audio files")
	addFilePath = addFileCmd.Arg("path", "Audio file paths").Required().ExistingFiles()

	// playlist commands
	removeCmd   = app.Command("remove", "Remove a track")
	removeIndex = removeCmd.Arg("index", "Track index").Required().Int()
	selectCmd   = app.Command("select", "Play a track")
	selectIndex = selectCmd.Arg("index", "Track index").Required().Int()

	// transport commands
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	playCmd     = app.Command("play", "Play")
	pauseCmd    = app.Command("pause", "Pause")
	nextCmd     = app.Command("next", "Next track")
	prevCmd     = app.Command("prev", "Previous track").Alias("previous")
	seekCmd     = app.Command("seek", "Seek within the current track")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()
	volumeCmd   = app.Command("volume", "Set the volume")
	volumeValue = volumeCmd.Arg("value", "Volume (0-1)").Required().Float64()
	muteCmd     = app.Command("mute", "Toggle mute")

	// command token
	sendCmd   = app.Command("send", "Send a command token (e.g. swipe_up, double_tap)")
	sendToken = sendCmd.Arg("token", "Command token").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	parsed := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch parsed {
	case statusCmd.FullCommand():
		status(ctx, client)
	case watchCmd.FullCommand():
		watch(ctx, client, *watchKinds)
	case addURLCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceAddTrackURLProcedure, map[string]any{"url": *addURLArg, "name": *addURLName})
	case addFileCmd.FullCommand():
		uploadFiles(ctx, *addFilePath)
	case removeCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceRemoveTrackProcedure, map[string]any{"index": *removeIndex})
	case selectCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceSelectTrackProcedure, map[string]any{"index": *selectIndex})
	case toggleCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceTogglePlayProcedure, nil)
	case playCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServicePlayProcedure, nil)
	case pauseCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServicePauseProcedure, nil)
	case nextCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceNextProcedure, nil)
	case prevCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServicePreviousProcedure, nil)
	case seekCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceSeekProcedure, map[string]any{"position": *seekSeconds})
	case volumeCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceSetVolumeProcedure, map[string]any{"volume": *volumeValue})
	case muteCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceToggleMuteProcedure, nil)
	case sendCmd.FullCommand():
		call(ctx, client, apiconnect.PlayerServiceSendCommandProcedure, map[string]any{"command": *sendToken})
	}
}

func fail(err error) {
	if code := connect.CodeOf(err); code == connect.CodeUnauthenticated {
		fmt.Println(errorStyle.Render("Error: invalid control token (use --token or MOODBOX_CONTROL_TOKEN env)"))
	} else {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
	}
	os.Exit(1)
}

func call(ctx context.Context, client *apiconnect.Client, procedure string, fields map[string]any) {
	if *token == "" {
		fmt.Println(errorStyle.Render("Error: control token is required (use --token or MOODBOX_CONTROL_TOKEN env)"))
		os.Exit(1)
	}

	resp, err := client.Call(ctx, procedure, fields)
	if err != nil {
		fail(err)
	}

	success, code, message := apiconnect.Result(resp)
	if !success {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Rejected [%s]: %s", code, message)))
		os.Exit(1)
	}

	fmt.Println(okStyle.Render(message))
	if t := resp.GetFields()["track"].GetStructValue(); t != nil {
		fmt.Println(renderTrack(t))
	}
	if st := resp.GetFields()["state"].GetStructValue(); st != nil {
		fmt.Println(renderPlayback(st))
	}
	if g := resp.GetFields()["gesture"].GetStringValue(); g != "" {
		fmt.Printf("Gesture: %s\n", g)
	}
}

func status(ctx context.Context, client *apiconnect.Client) {
	resp, err := client.Call(ctx, apiconnect.ViewerServiceGetStateProcedure, nil)
	if err != nil {
		fail(err)
	}
	fmt.Println(renderStatus(resp))
}

func watch(ctx context.Context, client *apiconnect.Client, kinds []string) {
	fmt.Println("Watching notifications (Ctrl+C to stop)...")

	err := client.Watch(ctx, kinds, func(msg *structpb.Struct) error {
		fmt.Println(renderNotification(msg))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fail(err)
	}
}

// uploadFiles posts files to the multipart upload endpoint.
func uploadFiles(ctx context.Context, paths []string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, path := range paths {
		if err := addPart(mw, path); err != nil {
			fail(err)
		}
	}
	if err := mw.Close(); err != nil {
		fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(*server, "/")+upload.Path, &body)
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(apiconnect.ControlTokenHeader, *token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	var result upload.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fail(fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err))
	}

	for _, f := range result.Files {
		if f.Success {
			fmt.Println(okStyle.Render(fmt.Sprintf("Added %s as %q", f.FileName, f.Name)))
		} else {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Rejected %s [%s]: %s", f.FileName, f.Code, f.Message)))
		}
	}
	if !result.Success {
		if len(result.Files) == 0 {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Rejected [%s]: %s", result.Code, result.Message)))
		}
		os.Exit(1)
	}
}

func addPart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
