// Package grid implements the garden: a fixed grid of plants that a
// gardener waters, nature changes, and monitors dump to files or the
// console.
//
// A plant is [Healthy] (1) or [Unhealthy] (0). Every plant starts healthy.
// [Grid.WaterRandomUnhealthyCell] and [Grid.MutateRandomCell] take the
// grid's write lock; [Grid.RenderTo], [Grid.Snapshot] and [Grid.Healthy]
// take it in read mode, so any number of monitors can dump at once.
//
// # Rendering
//
// The dump format is one line per row with cells separated by a single
// space. [FileSink], [WriterSink] and [ConsoleSink] share that layout;
// ConsoleSink only adds colour when writing to a terminal.
//
// [Model] is a bubbletea model for watching a grid interactively.
package grid
