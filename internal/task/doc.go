// Package task implements the cooperative task scheduler.
//
// A Task is a recurring callback. Each Thread owns a circular list of
// scheduled tasks; the list is index-based over a slab so list links never
// dangle. The driver pops the head task, runs it, and the task decides
// whether to run again by rescheduling itself.
//
// With stride scheduling enabled, the list is kept ordered by each task's
// pass value and a task advances its pass by a stride inversely proportional
// to its tickets, so a task holding twice the tickets runs twice as often.
// Without it, rescheduling always appends at the tail.
package task
