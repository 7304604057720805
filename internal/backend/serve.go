package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/command"
	"github.com/danmuck/simctl/internal/protocol"
)

const maxDatagram = 64 * 1024

// Serve answers framed command/status round trips for every connection
// accepted on ln until ctx is done or the listener closes.
func Serve(ctx context.Context, ln net.Listener, core *SimCore) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go serveConn(ctx, conn, core)
	}
}

func serveConn(ctx context.Context, conn net.Conn, core *SimCore) {
	defer conn.Close()
	unhook := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer unhook()
	reader := bufio.NewReader(conn)
	limits := protocol.DefaultLimits()
	for {
		fr, err := protocol.ReadFrame(reader, limits)
		if err != nil {
			if !errors.Is(err, protocol.ErrShortHeader) {
				log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("backend.serve read frame")
			}
			return
		}
		reply, err := answer(core, fr)
		if err != nil {
			log.Warn().Err(err).Uint64("message_id", fr.Header.MessageID).Msg("backend.serve answer")
			return
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

// ServePacket answers one framed round trip per datagram on pc until ctx
// is done or the socket closes.
func ServePacket(ctx context.Context, pc net.PacketConn, core *SimCore) error {
	go func() {
		<-ctx.Done()
		_ = pc.Close()
	}()
	buf := make([]byte, maxDatagram)
	limits := protocol.DefaultLimits()
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		fr, err := protocol.ReadFrame(bytes.NewReader(buf[:n]), limits)
		if err != nil {
			log.Debug().Err(err).Str("remote", addr.String()).Msg("backend.serve read datagram")
			continue
		}
		reply, err := answer(core, fr)
		if err != nil {
			log.Warn().Err(err).Uint64("message_id", fr.Header.MessageID).Msg("backend.serve answer")
			continue
		}
		if _, err := pc.WriteTo(reply, addr); err != nil {
			return err
		}
	}
}

// answer decodes one command frame, runs it on the core, and encodes the
// status frame echoing the request message id.
func answer(core *SimCore, fr protocol.Frame) ([]byte, error) {
	cmd, err := command.DecodeCommandFrame(fr)
	if err != nil {
		return nil, err
	}
	st, err := core.SubmitAndWait(cmd)
	if err != nil {
		return nil, err
	}
	return command.EncodeStatusFrame(fr.Header.MessageID, st)
}
