/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package fm

// algorithm routes the six operators. Index 0 is operator 1. mods[i] is a bitmask of
// the operators that phase-modulate operator i; a modulator always has a higher
// number than its target, so evaluating operator 6 down to 1 sees every input.
type algorithm struct {
	mods     [numOps]uint8
	carriers uint8
	feedback int
}

var algorithms [32]algorithm

func bit(op int) uint8 {
	return 1 << uint(op-1)
}

// route builds an algorithm from 1-based operator numbers; each edge is {from, to}.
func route(carriers []int, feedback int, edges ...[2]int) algorithm {
	a := algorithm{feedback: feedback - 1}
	for _, c := range carriers {
		a.carriers |= bit(c)
	}
	for _, e := range edges {
		a.mods[e[1]-1] |= bit(e[0])
	}
	return a
}

func init() {
	algorithms = [32]algorithm{
		route([]int{1, 3}, 6, [2]int{2, 1}, [2]int{6, 5}, [2]int{5, 4}, [2]int{4, 3}),
		route([]int{1, 3}, 2, [2]int{2, 1}, [2]int{6, 5}, [2]int{5, 4}, [2]int{4, 3}),
		route([]int{1, 4}, 6, [2]int{3, 2}, [2]int{2, 1}, [2]int{6, 5}, [2]int{5, 4}),
		route([]int{1, 4}, 6, [2]int{3, 2}, [2]int{2, 1}, [2]int{6, 5}, [2]int{5, 4}),
		route([]int{1, 3, 5}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{6, 5}),
		route([]int{1, 3, 5}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{6, 5}),
		route([]int{1, 3}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 3}, [2]int{6, 5}),
		route([]int{1, 3}, 4, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 3}, [2]int{6, 5}),
		route([]int{1, 3}, 2, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 3}, [2]int{6, 5}),
		route([]int{1, 4}, 3, [2]int{3, 2}, [2]int{2, 1}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 4}, 6, [2]int{3, 2}, [2]int{2, 1}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 3}, 2, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 3}, [2]int{6, 3}),
		route([]int{1, 3}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 3}, [2]int{6, 3}),
		route([]int{1, 3}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 3}, 2, [2]int{2, 1}, [2]int{4, 3}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1}, 6, [2]int{2, 1}, [2]int{4, 3}, [2]int{3, 1}, [2]int{6, 5}, [2]int{5, 1}),
		route([]int{1}, 2, [2]int{2, 1}, [2]int{4, 3}, [2]int{3, 1}, [2]int{6, 5}, [2]int{5, 1}),
		route([]int{1}, 3, [2]int{2, 1}, [2]int{3, 1}, [2]int{6, 5}, [2]int{5, 4}, [2]int{4, 1}),
		route([]int{1, 4, 5}, 6, [2]int{3, 2}, [2]int{2, 1}, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 2, 4}, 3, [2]int{3, 1}, [2]int{3, 2}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 2, 4, 5}, 3, [2]int{3, 1}, [2]int{3, 2}, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 3, 4, 5}, 6, [2]int{2, 1}, [2]int{6, 3}, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 2, 4, 5}, 6, [2]int{3, 2}, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 2, 3, 4, 5}, 6, [2]int{6, 3}, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 2, 3, 4, 5}, 6, [2]int{6, 4}, [2]int{6, 5}),
		route([]int{1, 2, 4}, 6, [2]int{3, 2}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 2, 4}, 3, [2]int{3, 2}, [2]int{5, 4}, [2]int{6, 4}),
		route([]int{1, 3, 6}, 5, [2]int{2, 1}, [2]int{5, 4}, [2]int{4, 3}),
		route([]int{1, 2, 3, 5}, 6, [2]int{4, 3}, [2]int{6, 5}),
		route([]int{1, 2, 3, 6}, 5, [2]int{5, 4}, [2]int{4, 3}),
		route([]int{1, 2, 3, 4, 5}, 6, [2]int{6, 5}),
		route([]int{1, 2, 3, 4, 5, 6}, 6),
	}
}
