package handlers

import (
	"bufio"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// upgradeWriter lets websocket.Accept hijack through gin. gin refuses to hijack once the
// status line is out, so the 101 is held back and written on the raw connection after
// the takeover. It must not expose WriteHeaderNow.
type upgradeWriter struct {
	gw       gin.ResponseWriter
	switched bool
}

func newUpgradeWriter(gw gin.ResponseWriter) *upgradeWriter {
	return &upgradeWriter{gw: gw}
}

func (w *upgradeWriter) Header() http.Header { return w.gw.Header() }

func (w *upgradeWriter) Write(b []byte) (int, error) { return w.gw.Write(b) }

func (w *upgradeWriter) WriteHeader(code int) {
	if code == http.StatusSwitchingProtocols {
		w.switched = true
		return
	}
	w.gw.WriteHeader(code)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.switched {
		// recorded only; gin writes status lazily
		w.gw.WriteHeader(http.StatusSwitchingProtocols)
	}

	conn, brw, err := w.gw.Hijack()
	if err != nil {
		return nil, nil, err
	}

	if !w.switched {
		return conn, brw, nil
	}

	if err := writeSwitchingProtocols(brw.Writer, w.gw.Header()); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, brw, nil
}

func writeSwitchingProtocols(bw *bufio.Writer, h http.Header) error {
	if _, err := bw.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	if err := h.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}
