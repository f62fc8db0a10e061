// Package routes implements a bus-route graph shared by concurrent
// dispatchers and travellers.
//
// Writers change ticket prices, add or remove routes, and rename cities;
// readers look up the cheapest fare between two cities. All of it goes
// through one [rwlock.Lock] per [Graph].
//
// Routes are undirected. A city disappears only through
// [Graph.ReplaceCity]; removing its last route leaves it in place.
package routes
