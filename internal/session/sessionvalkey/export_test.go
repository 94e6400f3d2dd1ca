package sessionvalkey

func (s *Store) Key(id string) string { return s.key(id) }

func (s *Store) Prefix() string { return s.prefix }

var PairsToMap = pairsToMap
