package routes

import (
	"cmp"
	"container/heap"
	"context"
	"slices"

	"github.com/Iron-Ham/keeper/internal/errors"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

const resourceName = "routes"

// Route is a direct bus connection with a ticket price. Routes are
// undirected: the graph always stores both directions with the same price.
type Route struct {
	From  string
	To    string
	Price int
}

// Graph is a bus-route graph guarded by an rwlock.
type Graph struct {
	lock   *rwlock.Lock
	routes map[string]map[string]int // from -> to -> price

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Graph.
type Option func(*options)

type options struct {
	bus      *event.Bus
	logger   *logging.Logger
	lockOpts []rwlock.Option
}

// WithBus publishes route events on bus.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLockOptions passes options to the graph's rwlock.
func WithLockOptions(opts ...rwlock.Option) Option {
	return func(o *options) { o.lockOpts = append(o.lockOpts, opts...) }
}

// New returns an empty Graph.
func New(opts ...Option) *Graph {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	return &Graph{
		lock:   rwlock.New(resourceName, o.lockOpts...),
		routes: make(map[string]map[string]int),
		bus:    o.bus,
		logger: o.logger.WithResource(resourceName),
	}
}

// Stats returns a snapshot of the graph lock.
func (g *Graph) Stats() rwlock.Stats {
	return g.lock.Stats()
}

// ChangeTicketPrice sets the price of an existing route in both
// directions. It reports false if there is no such route.
func (g *Graph) ChangeTicketPrice(ctx context.Context, from, to string, price int) (bool, error) {
	if price < 0 {
		return false, errors.NewValidationError("price must not be negative").WithField("price").WithValue(price)
	}

	changed := false
	err := g.lock.WithWrite(ctx, func() error {
		if _, ok := g.routes[from][to]; !ok {
			return nil
		}
		g.routes[from][to] = price
		g.routes[to][from] = price
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}

	g.logger.Debug("ticket price changed", "from", from, "to", to, "price", price)
	g.bus.Publish(event.NewRouteChangedEvent("price", from, to, price))
	return true, nil
}

// ModifyRoute inserts or overwrites a route in both directions, creating
// either city if needed.
func (g *Graph) ModifyRoute(ctx context.Context, r Route) error {
	if err := validateRoute(r); err != nil {
		return err
	}

	err := g.lock.WithWrite(ctx, func() error {
		g.setLocked(r.From, r.To, r.Price)
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Debug("route set", "from", r.From, "to", r.To, "price", r.Price)
	g.bus.Publish(event.NewRouteChangedEvent("route", r.From, r.To, r.Price))
	return nil
}

// RemoveRoute deletes the route between from and to. Cities stay in the
// graph even when they lose their last route.
func (g *Graph) RemoveRoute(ctx context.Context, from, to string) (bool, error) {
	removed := false
	err := g.lock.WithWrite(ctx, func() error {
		if _, ok := g.routes[from][to]; !ok {
			return nil
		}
		delete(g.routes[from], to)
		delete(g.routes[to], from)
		removed = true
		return nil
	})
	if err != nil || !removed {
		return false, err
	}

	g.logger.Debug("route removed", "from", from, "to", to)
	g.bus.Publish(event.NewRouteChangedEvent("remove", from, to, 0))
	return true, nil
}

// ReplaceCity removes oldCity and reconnects each of its neighbours to
// newCity at the same price. An empty newCity only removes oldCity. If
// newCity already has a route to a neighbour, the moved route overwrites it.
func (g *Graph) ReplaceCity(ctx context.Context, oldCity, newCity string) error {
	if oldCity == "" {
		return errors.NewValidationError("city name is required").WithField("old")
	}
	if oldCity == newCity {
		return nil
	}

	err := g.lock.WithWrite(ctx, func() error {
		neighbours, ok := g.routes[oldCity]
		if !ok {
			return nil
		}
		delete(g.routes, oldCity)
		for city := range neighbours {
			delete(g.routes[city], oldCity)
		}

		if newCity == "" {
			return nil
		}
		if _, ok := g.routes[newCity]; !ok {
			g.routes[newCity] = make(map[string]int)
		}
		for city, price := range neighbours {
			if city == newCity {
				continue
			}
			g.setLocked(newCity, city, price)
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Debug("city replaced", "old", oldCity, "new", newCity)
	g.bus.Publish(event.NewRouteChangedEvent("city", oldCity, newCity, 0))
	return nil
}

// FindRoutePrice returns the cheapest total price from one city to
// another. Travelling from a city to itself costs nothing.
func (g *Graph) FindRoutePrice(ctx context.Context, from, to string) (int, bool, error) {
	var (
		price int
		found bool
	)
	err := g.lock.WithRead(ctx, func() error {
		price, found = g.cheapestLocked(from, to)
		return nil
	})
	return price, found, err
}

// Routes returns every route once, with From < To, sorted by From then To.
func (g *Graph) Routes(ctx context.Context) ([]Route, error) {
	var out []Route
	err := g.lock.WithRead(ctx, func() error {
		for from, dests := range g.routes {
			for to, price := range dests {
				if from < to {
					out = append(out, Route{From: from, To: to, Price: price})
				}
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b Route) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return out, err
}

// Cities returns the sorted city names.
func (g *Graph) Cities(ctx context.Context) ([]string, error) {
	var out []string
	err := g.lock.WithRead(ctx, func() error {
		for city := range g.routes {
			out = append(out, city)
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

func (g *Graph) setLocked(from, to string, price int) {
	if _, ok := g.routes[from]; !ok {
		g.routes[from] = make(map[string]int)
	}
	if _, ok := g.routes[to]; !ok {
		g.routes[to] = make(map[string]int)
	}
	g.routes[from][to] = price
	g.routes[to][from] = price
}

// cheapestLocked runs Dijkstra from "from". Prices are never negative, so
// the first time "to" is popped its distance is final.
func (g *Graph) cheapestLocked(from, to string) (int, bool) {
	if from == to {
		return 0, true
	}
	if _, ok := g.routes[from]; !ok {
		return 0, false
	}

	dist := map[string]int{from: 0}
	done := make(map[string]bool)
	pq := &queue{{city: from, cost: 0}}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if done[cur.city] {
			continue
		}
		if cur.city == to {
			return cur.cost, true
		}
		done[cur.city] = true

		for next, price := range g.routes[cur.city] {
			if done[next] {
				continue
			}
			cost := cur.cost + price
			if d, seen := dist[next]; !seen || cost < d {
				dist[next] = cost
				heap.Push(pq, item{city: next, cost: cost})
			}
		}
	}
	return 0, false
}

func validateRoute(r Route) error {
	switch {
	case r.From == "" || r.To == "":
		return errors.NewValidationError("both cities are required").WithField("route")
	case r.From == r.To:
		return errors.NewValidationError("route must connect two different cities").WithField("route").WithValue(r.From)
	case r.Price < 0:
		return errors.NewValidationError("price must not be negative").WithField("price").WithValue(r.Price)
	}
	return nil
}

type item struct {
	city string
	cost int
}

// queue is a min-heap of items ordered by cost.
type queue []item

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
