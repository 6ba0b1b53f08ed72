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
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	oversight "cirello.io/oversight/easy"
	terminal "github.com/buildkite/terminal-to-html/v3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ucirello-labs/replmuxd/internal/buildinfo"
	"github.com/ucirello-labs/replmuxd/internal/runner"
)

const shutdownGrace = 5 * time.Second

// outputCache holds the last output bytes produced for each command name,
// for the debug HTML viewer. It is overwritten every request and never
// grows, unlike the request's own Output accumulator.
type outputCache struct {
	mu   sync.Mutex
	last map[string][]byte
}

func newOutputCache() *outputCache {
	return &outputCache{last: make(map[string][]byte)}
}

func (c *outputCache) set(name string, out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[name] = out
}

func (c *outputCache) get(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.last[name]
	return out, ok
}

// zapRunCmdLogger adapts a *zap.Logger to runner.Logger, so the core never
// imports zap itself.
type zapRunCmdLogger struct {
	log *zap.Logger
}

func (l zapRunCmdLogger) LogRunCmd(name, outcome string, err error) {
	if err != nil {
		l.log.Debug("run_cmd", zap.String("name", name), zap.String("outcome", outcome), zap.Error(err))
		return
	}
	l.log.Debug("run_cmd", zap.String("name", name), zap.String("outcome", outcome))
}

type runRequest struct {
	Name       string `json:"name" binding:"required"`
	Input      string `json:"input"`
	OutputSize int    `json:"outputSize"`
}

// serve binds a gin engine to a Unix-domain socket at socketPath and runs
// it under an oversight-supervised goroutine until ctx is canceled,
// matching the teacher's oversight.WithContext/oversight.Add pattern for
// supervising its own HTTP listener.
func serve(ctx context.Context, socketPath string, logger *zap.Logger) error {
	runner.SetLogger(zapRunCmdLogger{log: logger})
	runner.SetDaemonContext(ctx)

	cache := newOutputCache()
	engine := newGinEngine(cache, logger)

	if err := os.RemoveAll(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: engine}

	ctx = oversight.WithContext(ctx, oversight.WithLogger(zap.NewStdLog(logger)))
	oversight.Add(ctx, func(context.Context) error {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			return err
		}
		return nil
	})

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newGinEngine(cache *outputCache, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	e.GET("/version", func(c *gin.Context) {
		info, err := buildinfo.Read(".")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revision": info.Revision, "dirty": info.Dirty})
	})

	e.POST("/run", func(c *gin.Context) {
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}

		requestID := uuid.New().String()
		logger.Debug("handling /run", zap.String("requestID", requestID), zap.String("name", req.Name))

		out, err := runner.RunCmd(c.Request.Context(), req.Name, req.Input, req.OutputSize)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, runner.ErrTimeout) {
				status = http.StatusGatewayTimeout
			}
			c.String(status, err.Error())
			return
		}
		cache.set(req.Name, out)
		c.Data(http.StatusOK, "application/octet-stream", out)
	})

	e.GET("/debug/output/:name", func(c *gin.Context) {
		name := c.Param("name")
		out, ok := cache.get(name)
		if !ok {
			c.String(http.StatusNotFound, "no output captured yet for %q", name)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", terminal.Render(out))
	})

	return e
}
