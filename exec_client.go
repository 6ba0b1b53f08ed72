// Copyright 2024 github.com/ucirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
)

// execCommand is the manual-probing client: it reads a snippet from stdin,
// posts it to a running daemon's Unix socket, and prints whatever bytes
// come back. The spiritual descendant of dialing a TCP port to poll a
// service-discovery endpoint, adapted to speak the RunCmd contract
// directly instead.
func execCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "send a snippet on stdin to a running replmuxd and print its output",
		ArgsUsage: "<command-name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Value: "/run/replmuxd.sock",
				Usage: "Unix-domain socket of the running daemon",
			},
			&cli.IntFlag{
				Name:  "output-size",
				Usage: "override the command's default output buffer capacity",
			},
		},
		Action: execAction,
	}
}

func execAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("exec: missing <command-name> argument")
	}

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("exec: reading stdin: %w", err)
	}

	body, err := json.Marshal(struct {
		Name       string `json:"name"`
		Input      string `json:"input"`
		OutputSize int    `json:"outputSize"`
	}{Name: name, Input: string(input), OutputSize: c.Int("output-size")})
	if err != nil {
		return fmt.Errorf("exec: encoding request: %w", err)
	}

	client := unixSocketClient(c.String("socket"))
	resp, err := client.Post("http://unix/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("exec: dialing %q: %w", c.String("socket"), err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("exec: reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("exec: %s: %s", resp.Status, out)
	}

	_, err = os.Stdout.Write(out)
	return err
}

func unixSocketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}
