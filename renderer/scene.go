package renderer

// Scene keeps the active renderables in insertion order with lookup by
// object id.
type Scene struct {
	order []int
	byID  map[int]*Renderable
}

func newScene() *Scene {
	return &Scene{byID: make(map[int]*Renderable)}
}

func (s *Scene) Get(id int) (*Renderable, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *Scene) Len() int { return len(s.order) }

func (s *Scene) add(r *Renderable) {
	s.order = append(s.order, r.Object.ID)
	s.byID[r.Object.ID] = r
}

func (s *Scene) remove(id int) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Each calls fn for every renderable in insertion order.
func (s *Scene) Each(fn func(*Renderable)) {
	for _, id := range s.order {
		fn(s.byID[id])
	}
}
