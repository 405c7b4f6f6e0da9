// Package program turns YAML documents into script statements and scheduled
// tasks.
//
// A program is a tree of single-key YAML mappings. The key names the node and
// the value holds its operands; bare names stand for nodes without operands
// and a list is a sequence:
//
//	- assign: {name: dest, position: selected}
//	- move_to: {var: dest}
//	- while:
//	    condition: {not: {carries_item: this}}
//	    body: {work_at: here}
//	- print: {unit: nearest_enemy}
//
// Statements: sequence, assign, print, break, if, while, move_to, work_at,
// follow, attack. Boolean expressions: true, false, not, and, or, is_solid,
// is_passable, is_friend, is_enemy, is_alive, carries_item, var. Positions:
// here, selected, none, log, boulder, workshop, cube or [x, y, z],
// position_of, next_to, var. Units: this, nearest_unit, nearest_friend,
// nearest_enemy, var.
package program
