package engine

// Scene holds the live root objects. Children of an added root are indexed
// by UID as well, so FindByUID resolves any node of an attached subtree.
type Scene struct {
	Name        string
	GameObjects []*GameObject
	uidMap      map[uint64]*GameObject
}

func NewScene(name string) *Scene {
	return &Scene{
		Name:        name,
		GameObjects: make([]*GameObject, 0),
		uidMap:      make(map[uint64]*GameObject),
	}
}

func (s *Scene) AddGameObject(g *GameObject) {
	if s.uidMap == nil {
		s.uidMap = make(map[uint64]*GameObject)
	}
	if _, ok := s.uidMap[g.UID]; ok {
		return
	}
	s.GameObjects = append(s.GameObjects, g)
	g.Walk(func(n *GameObject) bool {
		n.Scene = s
		s.uidMap[n.UID] = n
		return true
	})
}

func (s *Scene) RemoveGameObject(g *GameObject) {
	for i, obj := range s.GameObjects {
		if obj == g {
			s.GameObjects = append(s.GameObjects[:i], s.GameObjects[i+1:]...)
			g.Walk(func(n *GameObject) bool {
				n.Scene = nil
				delete(s.uidMap, n.UID)
				return true
			})
			return
		}
	}
}

// Contains reports whether g is one of the scene's root objects.
func (s *Scene) Contains(g *GameObject) bool {
	for _, obj := range s.GameObjects {
		if obj == g {
			return true
		}
	}
	return false
}

func (s *Scene) FindByUID(uid uint64) *GameObject {
	return s.uidMap[uid]
}

func (s *Scene) FindByName(name string) *GameObject {
	for _, root := range s.GameObjects {
		var found *GameObject
		root.Walk(func(n *GameObject) bool {
			if found != nil {
				return false
			}
			if n.Name == name {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func (s *Scene) FindByTag(tag string) []*GameObject {
	var result []*GameObject
	for _, root := range s.GameObjects {
		root.Walk(func(n *GameObject) bool {
			if n.HasTag(tag) {
				result = append(result, n)
			}
			return true
		})
	}
	return result
}
