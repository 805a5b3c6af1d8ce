package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

// transcriptEvent is one decoded message from the listen socket.
type transcriptEvent struct {
	Text         string
	IsFinal      bool
	SpeechFinal  bool
	UtteranceEnd bool
}

// streamParams are the per-session query parameters.
type streamParams struct {
	Encoding       string
	SampleRate     int
	Channels       int
	InterimResults bool
	Language       string
}

// HandshakeError is a websocket upgrade rejected by the provider.
type HandshakeError struct {
	Status int
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("deepgram rejected the connection with status %d: %v", e.Status, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

func dialStream(ctx context.Context, dialer *websocket.Dialer, cfg Config, params streamParams) (*stream, error) {
	wsURL, err := buildListenURL(cfg, params)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{Status: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	s := &stream{
		conn:     conn,
		events:   make(chan transcriptEvent, 64),
		audio:    make(chan []byte, 32),
		stopSend: make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		_ = conn.Close()
		close(s.done)
	}()

	return s, nil
}

// stream is one open listen socket. Audio goes in through SendAudio and
// decoded events come out of Events until the provider closes the socket.
type stream struct {
	conn *websocket.Conn

	events   chan transcriptEvent
	audio    chan []byte
	stopSend chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

var errSendClosed = errors.New("audio stream is already closed")

func (s *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	select {
	case <-s.stopSend:
		return errSendClosed
	default:
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.stopSend:
		return errSendClosed
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errSendClosed
	}
}

// CloseSend asks the provider to flush pending results and close the socket.
func (s *stream) CloseSend() {
	s.closeSendOnce.Do(func() { close(s.stopSend) })
}

func (s *stream) Events() <-chan transcriptEvent {
	return s.events
}

func (s *stream) Wait() error {
	<-s.done
	return s.waitErr()
}

// Close drops the socket without waiting for the provider.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	if err == nil {
		return
	}
	if isCleanClose(err) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isCleanClose reports a normal websocket close anywhere in err's chain.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	}
	return false
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

sending:
	for {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return
			}
		case <-s.stopSend:
			break sending
		}
	}
	// Flush whatever was queued before the close request.
	for drained := false; !drained; {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return
			}
		default:
			drained = true
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *stream) write(chunk []byte) bool {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		s.setErr(fmt.Errorf("failed to send audio: %w", err))
		return false
	}
	return true
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	defer s.CloseSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		switch {
		case strings.EqualFold(response.Type, "Error"):
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = strings.TrimSpace(response.Description)
			}
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		case strings.EqualFold(response.Type, "UtteranceEnd"):
			s.emit(transcriptEvent{UtteranceEnd: true})
			continue
		}

		transcript := extractTranscript(response)
		if transcript == "" && !response.SpeechFinal {
			continue
		}
		s.emit(transcriptEvent{
			Text:        transcript,
			IsFinal:     response.IsFinal || response.SpeechFinal,
			SpeechFinal: response.SpeechFinal,
		})
	}
}

// emit never blocks the read loop; a consumer that falls behind loses events.
func (s *stream) emit(event transcriptEvent) {
	select {
	case s.events <- event:
	default:
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, params streamParams) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid Deepgram API base URL %q: scheme must be http(s) or ws(s)", cfg.APIBaseURL)
	}

	if params.Encoding == "" {
		params.Encoding = "linear16"
	}
	if params.SampleRate <= 0 {
		params.SampleRate = 16000
	}
	if params.Channels <= 0 {
		params.Channels = 1
	}
	language := params.Language
	if language == "" {
		language = cfg.Language
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", params.Encoding)
	query.Set("sample_rate", strconv.Itoa(params.SampleRate))
	query.Set("channels", strconv.Itoa(params.Channels))
	query.Set("interim_results", strconv.FormatBool(params.InterimResults))
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if language != "" {
		query.Set("language", language)
	}
	if cfg.Endpointing > 0 {
		query.Set("endpointing", strconv.Itoa(int(cfg.Endpointing.Milliseconds())))
	}
	if cfg.UtteranceEnd > 0 && params.InterimResults {
		query.Set("utterance_end_ms", strconv.Itoa(int(cfg.UtteranceEnd.Milliseconds())))
	}
	for _, keyword := range cfg.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			query.Add("keywords", keyword)
		}
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
