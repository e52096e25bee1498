package rarstream

// ProcessArchive is an archive opened for processing, positioned before a
// header.
type ProcessArchive struct {
	cursor
}

// ProcessEntry is the current entry of a ProcessArchive. Exactly one of its
// actions must be applied to get the next ProcessArchive.
type ProcessEntry struct {
	cursor
	header FileHeader
}

// ReadHeader reads the next header. At the end of the archive it returns a
// nil entry and a nil error and the archive is closed; on error the archive
// is closed as well.
//
// A failed implicit skip of an abandoned Pending is returned first, without
// moving the cursor.
func (a *ProcessArchive) ReadHeader() (*ProcessEntry, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	s := a.s
	s.begin()
	if err := s.takeDeferred(); err != nil {
		return nil, err
	}
	h, ok, err := s.readHeader()
	if err != nil {
		return nil, s.fail(err)
	}
	if !ok {
		s.end()
		return nil, nil
	}
	return &ProcessEntry{cursor: a.advance(), header: h}, nil
}

// TryNext reads the next header and returns it as a Pending entry, or nil at
// the end of the archive. A Pending that is not processed is skipped by the
// next call. Errors leave the archive open but damaged: TryNext then returns
// ErrDamaged until ForceHeal.
func (a *ProcessArchive) TryNext() (*Pending, error) {
	if a.s != nil && a.s.done {
		return nil, nil
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	s := a.s
	s.begin()
	if err := s.takeDeferred(); err != nil {
		return nil, err
	}
	if s.damaged {
		return nil, ErrDamaged
	}
	h, ok, err := s.readHeader()
	if err != nil {
		s.damaged = true
		return nil, err
	}
	if !ok {
		s.end()
		return nil, nil
	}
	s.lastID++
	s.pending, s.pendingName = s.lastID, h.Filename
	return &Pending{s: s, id: s.lastID, header: h}, nil
}

// Entry returns the header of the entry.
func (e *ProcessEntry) Entry() FileHeader { return e.header }

// Skip moves past the entry without decompressing it.
func (e *ProcessEntry) Skip() (*ProcessArchive, error) { return e.run(skipAction{}, "", "") }

// Test decompresses the entry and verifies its checksum.
func (e *ProcessEntry) Test() (*ProcessArchive, error) { return e.run(testAction{}, "", "") }

// Extract writes the entry below the current directory.
func (e *ProcessEntry) Extract() (*ProcessArchive, error) { return e.ExtractWithBase("") }

// ExtractTo writes the entry to the file dest.
func (e *ProcessEntry) ExtractTo(dest string) (*ProcessArchive, error) {
	if err := checkNul(dest); err != nil {
		return nil, err
	}
	return e.run(extractAction{}, "", dest)
}

// ExtractWithBase writes the entry below base, keeping its archive path.
func (e *ProcessEntry) ExtractWithBase(base string) (*ProcessArchive, error) {
	if err := checkNul(base); err != nil {
		return nil, err
	}
	destPath, destName := extractArgs(base, e.header.Filename)
	return e.run(extractAction{}, destPath, destName)
}

// Read decompresses the entry into memory.
func (e *ProcessEntry) Read() ([]byte, *ProcessArchive, error) {
	if err := e.check(); err != nil {
		return nil, nil, err
	}
	data, err := runAction[[]byte](e.s, readAction{sizeHint: e.header.UnpackedSize}, e.header.Filename, "", "")
	if err != nil {
		return nil, nil, e.s.fail(err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, &ProcessArchive{cursor: e.advance()}, nil
}

func (e *ProcessEntry) run(a payloadAction[struct{}], destPath, destName string) (*ProcessArchive, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if _, err := runAction(e.s, a, e.header.Filename, destPath, destName); err != nil {
		return nil, e.s.fail(err)
	}
	return &ProcessArchive{cursor: e.advance()}, nil
}

// Pending is an entry returned by TryNext. Only the first action applied to
// it runs; later ones, and any after the archive moved on, return
// ErrCursorMoved. A failing action marks the archive damaged.
type Pending struct {
	s      *session
	id     uint64
	header FileHeader
}

// Header returns the header of the entry.
func (p *Pending) Header() FileHeader { return p.header }

func (p *Pending) claim() error {
	switch {
	case p.s.closed:
		return ErrClosed
	case p.s.pending != p.id:
		return ErrCursorMoved
	}
	p.s.pending, p.s.pendingName = 0, ""
	return nil
}

func (p *Pending) run(a payloadAction[struct{}], destPath, destName string) error {
	if err := p.claim(); err != nil {
		return err
	}
	if _, err := runAction(p.s, a, p.header.Filename, destPath, destName); err != nil {
		p.s.damaged = true
		return err
	}
	return nil
}

// Skip moves past the entry without decompressing it.
func (p *Pending) Skip() error { return p.run(skipAction{}, "", "") }

// Test decompresses the entry and verifies its checksum.
func (p *Pending) Test() error { return p.run(testAction{}, "", "") }

// Extract writes the entry below the current directory.
func (p *Pending) Extract() error { return p.ExtractWithBase("") }

// ExtractTo writes the entry to the file dest.
func (p *Pending) ExtractTo(dest string) error {
	if err := checkNul(dest); err != nil {
		return err
	}
	return p.run(extractAction{}, "", dest)
}

// ExtractWithBase writes the entry below base, keeping its archive path.
func (p *Pending) ExtractWithBase(base string) error {
	if err := checkNul(base); err != nil {
		return err
	}
	destPath, destName := extractArgs(base, p.header.Filename)
	return p.run(extractAction{}, destPath, destName)
}

// Read decompresses the entry into memory.
func (p *Pending) Read() ([]byte, error) {
	if err := p.claim(); err != nil {
		return nil, err
	}
	data, err := runAction[[]byte](p.s, readAction{sizeHint: p.header.UnpackedSize}, p.header.Filename, "", "")
	if err != nil {
		p.s.damaged = true
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
