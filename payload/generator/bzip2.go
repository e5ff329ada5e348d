// Copyright The Lode Authors
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"bytes"
	"io"
	"os"
	"os/exec"
)

// bzip2Writer drives an external compressor process. The Go standard
// library only decompresses bzip2, so the encode side shells out.
type bzip2Writer struct {
	cmd *exec.Cmd
	in  io.WriteCloser
}

// NewBzip2Writer wraps a writer, compressing all data written to it.
// lbzip2 is preferred when installed, plain bzip2 otherwise.
func NewBzip2Writer(w io.Writer) (io.WriteCloser, error) {
	zipper, err := exec.LookPath("lbzip2")
	if err != nil {
		zipper = "bzip2"
	}

	cmd := exec.Command(zipper, "-c")
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	return &bzip2Writer{cmd, in}, cmd.Start()
}

func (bz *bzip2Writer) Write(p []byte) (n int, err error) {
	return bz.in.Write(p)
}

// Close stops the compressor, flushing out any remaining data.
// The underlying writer is not closed.
func (bz *bzip2Writer) Close() error {
	if err := bz.in.Close(); err != nil {
		return err
	}
	return bz.cmd.Wait()
}

// Bzip2 compresses an in-memory buffer. The error is
// exec.ErrNotFound, wrapped, when no bzip2 binary is installed.
func Bzip2(data []byte) ([]byte, error) {
	buf := bytes.Buffer{}
	zip, err := NewBzip2Writer(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := zip.Write(data); err != nil {
		return nil, err
	}

	if err := zip.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
