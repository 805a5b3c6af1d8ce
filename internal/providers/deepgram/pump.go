package deepgram

import (
	"errors"
	"fmt"
	"io"
	"os"
)

type pumpResult struct {
	code string
	err  error
}

// pumpAudio copies microphone chunks into the stream until the capture ends
// or the stream stops accepting audio.
func pumpAudio(mic io.Reader, st *stream, chunkSize int) (string, error) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := mic.Read(buf)
		if n > 0 {
			if sendErr := st.SendAudio(buf[:n]); sendErr != nil {
				if errors.Is(sendErr, errSendClosed) {
					return "", nil
				}
				return CodeNetwork, fmt.Errorf("failed to stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return "", nil
			}
			return CodeAudioCapture, fmt.Errorf("audio capture error: %w", err)
		}
	}
}
