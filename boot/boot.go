// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package boot implements the one step that runs before kernel.Init: a
// secure-boot style integrity check of the flash image the reset handler
// is about to jump into, using a blake2b checksum rather than trusting the
// image unconditionally.
package boot

import (
	"crypto/subtle"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/vela-rtos/vela/kerr"
)

// SumSize is the length in bytes of a Sum256 digest.
const SumSize = blake2b.Size256

// Sum256 returns the blake2b-256 digest of image.
func Sum256(image []byte) ([SumSize]byte, error) {
	return blake2b.Sum256(image), nil
}

// VerifyImage checks that image hashes to expectedSum, in constant time so
// the comparison itself leaks nothing about where a mismatch occurs. A
// zero-length expectedSum is treated as "verification not configured" and
// always succeeds, matching cmd/velasim's simulated-boot default.
func VerifyImage(image []byte, expectedSum []byte) error {
	if len(expectedSum) == 0 {
		return nil
	}
	if len(expectedSum) != SumSize {
		return kerr.New("boot.VerifyImage", kerr.InvalidArgument,
			fmt.Sprintf("expected sum must be %d bytes, got %d", SumSize, len(expectedSum)))
	}
	got := blake2b.Sum256(image)
	if subtle.ConstantTimeCompare(got[:], expectedSum) != 1 {
		return kerr.New("boot.VerifyImage", kerr.InvalidState, "image checksum mismatch")
	}
	return nil
}

// VerifyFile reads path and verifies it the same way VerifyImage does,
// returning the image bytes on success so the caller doesn't need to read
// the file twice.
func VerifyFile(path string, expectedSum []byte) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.New("boot.VerifyFile", kerr.InvalidState, err.Error())
	}
	if err := VerifyImage(image, expectedSum); err != nil {
		return nil, err
	}
	return image, nil
}
