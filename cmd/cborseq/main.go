/*
 * Gocbor - Concise Binary Object Representation Codec
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command cborseq prints the items of a CBOR sequence (RFC 8742) in
// diagnostic notation, one line per item.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/onflow/gocbor"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-header tags] [file]\n", os.Args[0])
		flag.PrintDefaults()
	}

	var headerFlag string
	flag.StringVar(&headerFlag, "header", "", "comma-separated header tag numbers to verify (e.g. 55799,3735928559)")
	flag.Parse()

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	var headerTags []uint64
	if headerFlag != "" {
		for _, part := range strings.Split(headerFlag, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(part), 0, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid header tag %q: %v\n", part, err)
				os.Exit(1)
			}
			headerTags = append(headerTags, n)
		}
	}

	reader := gocbor.NewSequenceReader(in, gocbor.DecOptions{}, headerTags...)
	for {
		item, err := reader.Next()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if item == nil {
			return
		}
		fmt.Println(gocbor.Diag(item))
	}
}
