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

package gocbor

var (
	// Default recursion limit shared by both engines. A MaxDepth option of
	// zero falls back to this value.
	defaultMaxDepth = 500
)

// SetDefaultMaxDepth sets the package-wide default recursion limit and
// returns the previous value.
func SetDefaultMaxDepth(depth int) int {
	prev := defaultMaxDepth
	defaultMaxDepth = depth
	return prev
}

// keyDigestSeed seeds the circlehash digests that index map keys and set
// elements. The value is arbitrary but must be stable: digests are never
// persisted, only compared within one process.
const keyDigestSeed uint64 = 0x6763626f72763100
