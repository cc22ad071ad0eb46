package todo

import (
	"sort"
	"time"
)

// Task is a single to-do item backed by a calendar event.
type Task struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	DateTime  time.Time `json:"dateTime"`
}

// ToggleCompletion returns task with its completion flag flipped. It never
// touches the calendar; toggling twice yields the original task.
func ToggleCompletion(task Task) Task {
	task.Completed = !task.Completed
	return task
}

// SortByDateTime sorts tasks ascending by date-time, keeping the relative
// order of tasks scheduled at the same moment.
func SortByDateTime(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DateTime.Before(tasks[j].DateTime)
	})
}

// Insert returns a copy of the sorted slice tasks with task added at its
// date-time position. Tasks at the same moment keep insertion order.
func Insert(tasks []Task, task Task) []Task {
	i := sort.Search(len(tasks), func(i int) bool {
		return tasks[i].DateTime.After(task.DateTime)
	})
	out := make([]Task, 0, len(tasks)+1)
	out = append(out, tasks[:i]...)
	out = append(out, task)
	return append(out, tasks[i:]...)
}

// Remove returns tasks without the task whose id is id.
func Remove(tasks []Task, id string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the task with the given id.
func Find(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
