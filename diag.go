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

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// Diag renders v in a diagnostic notation close to RFC 8949 EDN.
// Semantic variants render as their tag form. Cycles render as "...".
func Diag(v Value) string {
	var sb strings.Builder
	visited := make(map[interface{}]struct{})
	diagValue(&sb, v, visited)
	return sb.String()
}

func diagValue(sb *strings.Builder, v Value, visited map[interface{}]struct{}) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case Int:
		fmt.Fprintf(sb, "%d", int64(x))
	case BigInt:
		sb.WriteString(x.String())
	case Bytes:
		fmt.Fprintf(sb, "h'%s'", hex.EncodeToString(x))
	case Text:
		fmt.Fprintf(sb, "%q", string(x))
	case Bool:
		fmt.Fprintf(sb, "%t", bool(x))
	case Null:
		sb.WriteString("null")
	case Undefined:
		sb.WriteString("undefined")
	case Simple:
		fmt.Fprintf(sb, "simple(%d)", uint8(x))
	case Float:
		diagFloat(sb, float64(x))
	case *Array:
		if enter(sb, x, visited) {
			return
		}
		defer delete(visited, x)
		sb.WriteByte('[')
		for i, el := range x.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			diagValue(sb, el, visited)
		}
		sb.WriteByte(']')
	case *Map:
		if enter(sb, x, visited) {
			return
		}
		defer delete(visited, x)
		sb.WriteByte('{')
		for i, ent := range x.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			diagValue(sb, ent.Key, visited)
			sb.WriteString(": ")
			diagValue(sb, ent.Value, visited)
		}
		sb.WriteByte('}')
	case *Set:
		if enter(sb, x, visited) {
			return
		}
		defer delete(visited, x)
		fmt.Fprintf(sb, "%d([", CBORTagSet)
		for i, el := range x.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			diagValue(sb, el, visited)
		}
		sb.WriteString("])")
	case *Tagged:
		if enter(sb, x, visited) {
			return
		}
		defer delete(visited, x)
		fmt.Fprintf(sb, "%d(", x.Number)
		diagValue(sb, x.Content, visited)
		sb.WriteByte(')')
	case Time:
		fmt.Fprintf(sb, "%d(%q)", CBORTagDateTimeString, x.Format(time.RFC3339Nano))
	case Date:
		fmt.Fprintf(sb, "%d(%q)", CBORTagDateString, x.String())
	case Decimal:
		fmt.Fprintf(sb, "%d([%d, %s])", CBORTagDecimal, x.Exponent, x.Mantissa)
	case BigFloat:
		fmt.Fprintf(sb, "%d(%s)", CBORTagBigFloat, x.Text('g', -1))
	case Rational:
		fmt.Fprintf(sb, "%d([%s, %s])", CBORTagRational, x.Num(), x.Denom())
	case Regexp:
		fmt.Fprintf(sb, "%d(%q)", CBORTagRegexp, x.String())
	case MIME:
		fmt.Fprintf(sb, "%d(%q)", CBORTagMIME, x.Raw)
	case UUID:
		fmt.Fprintf(sb, "%d(h'%s')", CBORTagUUID, hex.EncodeToString(x.UUID[:]))
	case Addr:
		fmt.Fprintf(sb, "%d(%q)", CBORTagNetworkAddress, x.String())
	case Prefix:
		fmt.Fprintf(sb, "%d(%q)", CBORTagNetworkPrefix, x.String())
	default:
		fmt.Fprintf(sb, "%v", v)
	}
}

func enter(sb *strings.Builder, v interface{}, visited map[interface{}]struct{}) bool {
	if _, seen := visited[v]; seen {
		sb.WriteString("...")
		return true
	}
	visited[v] = struct{}{}
	return false
}

func diagFloat(sb *strings.Builder, f float64) {
	switch {
	case math.IsNaN(f):
		sb.WriteString("NaN")
	case math.IsInf(f, 1):
		sb.WriteString("Infinity")
	case math.IsInf(f, -1):
		sb.WriteString("-Infinity")
	default:
		s := fmt.Sprintf("%v", f)
		sb.WriteString(s)
		if !strings.ContainsAny(s, ".eE") {
			sb.WriteString(".0")
		}
	}
}
