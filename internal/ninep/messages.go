package ninep

// The Pkt types below mirror the fields of each 9P2000 message in wire
// order, following Harvey-OS/ninep's layout (TversionPkt, RattachPkt, etc.)
// but owning their own encode/decode instead of a generated stub.

type versionPkt struct {
	Msize   uint32
	Version string
}

func (p versionPkt) encode(b *buffer) {
	b.putUint32(p.Msize)
	b.putString(p.Version)
}

func (p *versionPkt) decode(b *buffer) error {
	var err error
	if p.Msize, err = b.getUint32(); err != nil {
		return err
	}
	p.Version, err = b.getString()
	return err
}

type attachPkt struct {
	FID   FID
	AFID  FID
	Uname string
	Aname string
}

func (p attachPkt) encode(b *buffer) {
	b.putUint32(uint32(p.FID))
	b.putUint32(uint32(p.AFID))
	b.putString(p.Uname)
	b.putString(p.Aname)
}

type rattachPkt struct{ QID QID }

func (p *rattachPkt) decode(b *buffer) error { return p.QID.decode(b) }

type walkPkt struct {
	FID    FID
	NewFID FID
	Wname  []string
}

func (p walkPkt) encode(b *buffer) {
	b.putUint32(uint32(p.FID))
	b.putUint32(uint32(p.NewFID))
	b.putStrings(p.Wname)
}

type rwalkPkt struct{ QIDs []QID }

func (p *rwalkPkt) decode(b *buffer) error {
	n, err := b.getUint16()
	if err != nil {
		return err
	}
	p.QIDs = make([]QID, n)
	for i := range p.QIDs {
		if err := p.QIDs[i].decode(b); err != nil {
			return err
		}
	}
	return nil
}

type openPkt struct {
	FID  FID
	Mode Mode
}

func (p openPkt) encode(b *buffer) {
	b.putUint32(uint32(p.FID))
	b.putUint8(uint8(p.Mode))
}

type ropenPkt struct {
	QID    QID
	IOUnit uint32
}

func (p *ropenPkt) decode(b *buffer) error {
	if err := p.QID.decode(b); err != nil {
		return err
	}
	var err error
	p.IOUnit, err = b.getUint32()
	return err
}

type clunkPkt struct{ FID FID }

func (p clunkPkt) encode(b *buffer) { b.putUint32(uint32(p.FID)) }

type readPkt struct {
	FID    FID
	Offset uint64
	Count  uint32
}

func (p readPkt) encode(b *buffer) {
	b.putUint32(uint32(p.FID))
	b.putUint64(p.Offset)
	b.putUint32(p.Count)
}

type rreadPkt struct{ Data []byte }

func (p *rreadPkt) decode(b *buffer) error {
	n, err := b.getUint32()
	if err != nil {
		return err
	}
	p.Data, err = b.getBytes(int(n))
	return err
}

type writePkt struct {
	FID    FID
	Offset uint64
	Data   []byte
}

func (p writePkt) encode(b *buffer) {
	b.putUint32(uint32(p.FID))
	b.putUint64(p.Offset)
	b.putUint32(uint32(len(p.Data)))
	b.putBytes(p.Data)
}

type rwritePkt struct{ Count uint32 }

func (p *rwritePkt) decode(b *buffer) error {
	var err error
	p.Count, err = b.getUint32()
	return err
}

type rerrorPkt struct{ Ename string }

func (p *rerrorPkt) decode(b *buffer) error {
	var err error
	p.Ename, err = b.getString()
	return err
}
