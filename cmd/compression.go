/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */


package cmd

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/liuxd6825/protobridge/errext"
	"github.com/liuxd6825/protobridge/errext/exitcodes"
)

// compressionTypes are the values accepted by --compression.
var compressionTypes = []string{"none", "gzip", "deflate", "zstd", "br"}

func validateCompression(compression string) error {
	for _, c := range compressionTypes {
		if c == compression {
			return nil
		}
	}
	return errext.WithExitCodeIfNone(
		fmt.Errorf("unsupported compression %q, expected one of %s", compression, strings.Join(compressionTypes, ", ")),
		exitcodes.InvalidConfig)
}

// decompress returns data decoded with the given compression.
func decompress(data []byte, compression string) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)
	switch compression {
	case "", "none":
		return data, nil
	case "gzip":
		r, err = gzip.NewReader(bytes.NewReader(data))
	case "deflate":
		r, err = zlib.NewReader(bytes.NewReader(data))
	case "zstd":
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(bytes.NewReader(data))
		if err == nil {
			// zstd.Decoder.Close doesn't return an error
			defer zr.Close()
			r = zr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, validateCompression(compression)
	}
	if err == nil {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, errext.WithExitCodeIfNone(
			fmt.Errorf("couldn't decompress the %s input: %w", compression, err), exitcodes.InvalidInput)
	}
	return data, nil
}
