package infidex

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/RoaringBitmap/roaring"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERIALIZATION: Saving and Loading the Index
// ═══════════════════════════════════════════════════════════════════════════════
// Why serialize?
// - Save a built index to disk for persistence
// - Send an index over the network to another process
// - Create backups without re-ingesting the original documents
//
// BINARY FORMAT:
// --------------
// A custom little-endian binary format, for the same reasons INFISCRIPT-V1
// uses one (see filter_serialize.go): smaller than JSON, faster to parse,
// and free to encode exactly the structures this package already has in
// memory (roaring bitmaps, skip lists) without a marshaling layer in
// between.
//
// FORMAT STRUCTURE:
// -----------------
// [CorpusStats header]
// [Documents: count, then each document's fields/flags/text]
// [Terms: count, then for each term in TermsByID order: its text, its
//  postings, and its positional skip list, encoded with a pointer→index
//  translation for the skip list towers]
//
// ENCODING STRATEGY FOR SKIP LISTS:
// ----------------------------------
// The tricky part is encoding the skip list tower structure:
// 1. Assign each node a sequential index (1, 2, 3, ...)
// 2. Store node positions (DocumentID, Offset pairs)
// 3. Store tower pointers as indices (not memory addresses!)
//
// Why use indices instead of pointers?
// - Pointers are meaningless after deserialization (different memory locations)
// - Indices are stable and can be reconstructed
// ═══════════════════════════════════════════════════════════════════════════════

// Encode serializes a built index to binary format. The index must already
// have Build() called on it; Encode does not validate this itself.
func (idx *Index) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := idx.encodeHeader(buf); err != nil {
		return nil, err
	}
	if err := idx.encodeDocuments(buf); err != nil {
		return nil, err
	}

	encoder := newIndexEncoder(buf)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(idx.TermsByID))); err != nil {
		return nil, err
	}
	for _, term := range idx.TermsByID {
		if err := encoder.encodeTerm(term, idx.Positions[term.Text]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// encodeHeader writes corpus-wide statistics (§3: "CorpusStats is computed
// once at the end").
func (idx *Index) encodeHeader(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(idx.Stats.TotalDocs)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, idx.Stats.AvgDocLength); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(idx.Stats.docFreq))); err != nil {
		return err
	}
	for term, df := range idx.Stats.docFreq {
		if err := writeStringTo(buf, term); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(df)); err != nil {
			return err
		}
	}
	return nil
}

// encodeDocuments writes every document's key, flags, text field name and
// every indexable/facetable field it carries.
func (idx *Index) encodeDocuments(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(idx.Documents))); err != nil {
		return err
	}
	for _, doc := range idx.Documents {
		if err := binary.Write(buf, binary.LittleEndian, doc.Key); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(doc.Segment)); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(doc.InternalID)); err != nil {
			return err
		}
		deleted := byte(0)
		if doc.Deleted {
			deleted = 1
		}
		if err := buf.WriteByte(deleted); err != nil {
			return err
		}
		if err := writeStringTo(buf, doc.TextField); err != nil {
			return err
		}
		if err := writeStringTo(buf, doc.FullText); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(doc.Fields))); err != nil {
			return err
		}
		for name, f := range doc.Fields {
			if err := writeStringTo(buf, name); err != nil {
				return err
			}
			flags := byte(0)
			if f.Indexable {
				flags |= 1
			}
			if f.Facetable {
				flags |= 2
			}
			if err := buf.WriteByte(flags); err != nil {
				return err
			}
			if err := buf.WriteByte(byte(f.Weight)); err != nil {
				return err
			}
			if _, err := buf.Write(encodeConst(nil, f.Value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStringTo(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

// indexEncoder handles posting-list and skip-list encoding. This
// encapsulates the encoding state and provides helper methods, the same way
// the rest of this package favors a small struct over threading a buffer
// through every call.
type indexEncoder struct {
	buffer *bytes.Buffer
}

func newIndexEncoder(buffer *bytes.Buffer) *indexEncoder {
	return &indexEncoder{buffer: buffer}
}

// encodeTerm serializes a single term's postings and its positional skip
// list.
//
// PHASES:
// -------
// 1. Term text
// 2. Posting list (internal id, weight, term frequency per posting)
// 3. Node positions of the skip list (DocumentID, Offset pairs)
// 4. Tower structure (how nodes link together)
func (e *indexEncoder) encodeTerm(term *Term, skipList *SkipList) error {
	if err := writeStringTo(e.buffer, term.Text); err != nil {
		return err
	}

	if err := binary.Write(e.buffer, binary.LittleEndian, uint32(len(term.Postings))); err != nil {
		return err
	}
	for _, p := range term.Postings {
		if err := binary.Write(e.buffer, binary.LittleEndian, uint32(p.InternalID)); err != nil {
			return err
		}
		if err := e.buffer.WriteByte(p.Weight); err != nil {
			return err
		}
		if err := binary.Write(e.buffer, binary.LittleEndian, uint32(p.TermFreq)); err != nil {
			return err
		}
	}

	if skipList == nil {
		skipList = NewSkipList()
	}

	nodeMap := e.buildNodeIndexMap(skipList)

	nodeData := e.encodeNodePositions(skipList)
	if err := e.writeBytes(nodeData); err != nil {
		return err
	}

	return e.encodeTowerStructure(skipList, nodeMap)
}

func (e *indexEncoder) writeBytes(data []byte) error {
	if err := binary.Write(e.buffer, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := e.buffer.Write(data)
	return err
}

// buildNodeIndexMap assigns every node in skipList a stable sequential
// index (1, 2, 3, ...), since memory-address pointers can't survive
// serialization.
func (e *indexEncoder) buildNodeIndexMap(skipList *SkipList) map[nodePosition]int {
	nodeMap := make(map[nodePosition]int)
	current := skipList.Head
	index := 1 // 0 means nil

	for current.Tower[0] != nil {
		current = current.Tower[0]
		pos := nodePosition{DocID: int32(current.Key.DocumentID), Position: int32(current.Key.Offset)}
		nodeMap[pos] = index
		index++
	}
	return nodeMap
}

// encodeNodePositions serializes every node's (DocumentID, Offset) pair, in
// list order.
func (e *indexEncoder) encodeNodePositions(skipList *SkipList) []byte {
	buf := new(bytes.Buffer)
	current := skipList.Head
	for current.Tower[0] != nil {
		current = current.Tower[0]
		binary.Write(buf, binary.LittleEndian, int32(current.Key.DocumentID))
		binary.Write(buf, binary.LittleEndian, int32(current.Key.Offset))
	}
	return buf.Bytes()
}

// encodeTowerStructure serializes each node's forward-pointer tower as a
// list of target indices (0 = no pointer at that level). The head's own
// tower is written first (index 0 in the stream, not to be confused with a
// node index), since its higher levels let a deserialized search skip ahead
// instead of degrading to a level-0 walk.
func (e *indexEncoder) encodeTowerStructure(skipList *SkipList, nodeMap map[nodePosition]int) error {
	headData := e.encodeTowerForNode(skipList.Head, nodeMap)
	if err := e.writeBytes(headData); err != nil {
		return err
	}

	current := skipList.Head
	for current.Tower[0] != nil {
		current = current.Tower[0]
		towerData := e.encodeTowerForNode(current, nodeMap)
		if err := e.writeBytes(towerData); err != nil {
			return err
		}
	}
	return nil
}

func (e *indexEncoder) encodeTowerForNode(node *Node, nodeMap map[nodePosition]int) []byte {
	buf := new(bytes.Buffer)
	indices := e.collectTowerIndices(node, nodeMap)
	if len(indices) == 0 {
		binary.Write(buf, binary.LittleEndian, uint16(0))
	} else {
		for _, idx := range indices {
			binary.Write(buf, binary.LittleEndian, uint16(idx))
		}
	}
	return buf.Bytes()
}

func (e *indexEncoder) collectTowerIndices(node *Node, nodeMap map[nodePosition]int) []int {
	var indices []int
	for level := 0; level < MaxHeight; level++ {
		if node.Tower[level] == nil {
			break
		}
		pos := nodePosition{
			DocID:    int32(node.Tower[level].Key.DocumentID),
			Position: int32(node.Tower[level].Key.Offset),
		}
		indices = append(indices, nodeMap[pos])
	}
	return indices
}

// nodePosition is a compact, serializable node identity: a (document id,
// offset) pair, used to translate tower pointers into stable indices.
type nodePosition struct {
	DocID    int32
	Position int32
}

// ═══════════════════════════════════════════════════════════════════════════════
// DESERIALIZATION: Loading the Index from Binary Data
// ═══════════════════════════════════════════════════════════════════════════════

// Decode reconstructs a fully built index from data produced by Encode. The
// returned index has DocBitmaps and Prefix rebuilt from the decoded terms
// (their postings and texts) so every read-path structure Search() touches is present, not
// just the ones Encode happened to serialize directly.
func Decode(data []byte) (*Index, error) {
	r := &byteReader{data: data}

	idx := NewIndex()

	if err := idx.decodeHeader(r); err != nil {
		return nil, err
	}
	if err := idx.decodeDocuments(r); err != nil {
		return nil, err
	}

	termCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	decoder := newIndexDecoder(r)
	for i := uint32(0); i < termCount; i++ {
		term, skipList, err := decoder.decodeTerm()
		if err != nil {
			return nil, err
		}
		term.ID = len(idx.TermsByID)
		idx.TermsByText[term.Text] = term
		idx.TermsByID = append(idx.TermsByID, term)
		idx.Positions[term.Text] = skipList
		idx.Prefix.Insert(term.Text, term.ID)

		bm := roaring.New()
		for _, p := range term.Postings {
			bm.Add(uint32(p.InternalID))
		}
		idx.DocBitmaps[term.Text] = bm
	}

	idx.built = true
	return idx, nil
}

func (idx *Index) decodeHeader(r *byteReader) error {
	totalDocs, err := r.readUint32()
	if err != nil {
		return err
	}
	avgLen, err := r.readUint64()
	if err != nil {
		return err
	}
	dfCount, err := r.readUint32()
	if err != nil {
		return err
	}
	idx.Stats = CorpusStats{
		TotalDocs:    int(totalDocs),
		AvgDocLength: math.Float64frombits(avgLen),
		docFreq:      make(map[string]int, dfCount),
	}
	for i := uint32(0); i < dfCount; i++ {
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		term, err := r.readString(int(n))
		if err != nil {
			return err
		}
		df, err := r.readUint32()
		if err != nil {
			return err
		}
		idx.Stats.docFreq[term] = int(df)
	}
	return nil
}

func (idx *Index) decodeDocuments(r *byteReader) error {
	docCount, err := r.readUint32()
	if err != nil {
		return err
	}
	idx.Documents = make([]*Document, 0, docCount)
	for i := uint32(0); i < docCount; i++ {
		var key int64
		keyBytes, err := r.readUint64()
		if err != nil {
			return err
		}
		key = int64(keyBytes)

		segment, err := r.readUint32()
		if err != nil {
			return err
		}
		internalID, err := r.readUint32()
		if err != nil {
			return err
		}
		deletedByte, err := r.readByte()
		if err != nil {
			return err
		}
		nameLen, err := r.readUint32()
		if err != nil {
			return err
		}
		textField, err := r.readString(int(nameLen))
		if err != nil {
			return err
		}
		fullLen, err := r.readUint32()
		if err != nil {
			return err
		}
		fullText, err := r.readString(int(fullLen))
		if err != nil {
			return err
		}
		fieldCount, err := r.readUint32()
		if err != nil {
			return err
		}
		fields := make(map[string]Field, fieldCount)
		for j := uint32(0); j < fieldCount; j++ {
			nLen, err := r.readUint32()
			if err != nil {
				return err
			}
			name, err := r.readString(int(nLen))
			if err != nil {
				return err
			}
			flags, err := r.readByte()
			if err != nil {
				return err
			}
			weight, err := r.readByte()
			if err != nil {
				return err
			}
			value, err := decodeConst(r)
			if err != nil {
				return err
			}
			fields[name] = Field{
				Value:     value,
				Weight:    WeightClass(weight),
				Indexable: flags&1 != 0,
				Facetable: flags&2 != 0,
			}
		}

		doc := &Document{
			Key:        key,
			Segment:    int(segment),
			InternalID: int(internalID),
			Fields:     fields,
			TextField:  textField,
			Deleted:    deletedByte != 0,
			FullText:   fullText,
		}
		idx.Documents = append(idx.Documents, doc)
		idx.ByKey[key] = append(idx.ByKey[key], doc)
	}
	return nil
}

// indexDecoder handles posting-list and skip-list decoding, the
// deserialization counterpart to indexEncoder.
type indexDecoder struct {
	r *byteReader
}

func newIndexDecoder(r *byteReader) *indexDecoder { return &indexDecoder{r: r} }

// decodeTerm decodes a single term: its postings, then its positional skip
// list (node positions followed by tower structure).
func (d *indexDecoder) decodeTerm() (*Term, *SkipList, error) {
	nameLen, err := d.r.readUint32()
	if err != nil {
		return nil, nil, err
	}
	text, err := d.r.readString(int(nameLen))
	if err != nil {
		return nil, nil, err
	}

	postingCount, err := d.r.readUint32()
	if err != nil {
		return nil, nil, err
	}
	postings := make([]Posting, 0, postingCount)
	for i := uint32(0); i < postingCount; i++ {
		internalID, err := d.r.readUint32()
		if err != nil {
			return nil, nil, err
		}
		weight, err := d.r.readByte()
		if err != nil {
			return nil, nil, err
		}
		tf, err := d.r.readUint32()
		if err != nil {
			return nil, nil, err
		}
		postings = append(postings, Posting{InternalID: int(internalID), Weight: weight, TermFreq: int(tf)})
	}

	nodeMap, err := d.decodeNodePositions()
	if err != nil {
		return nil, nil, err
	}
	head := &Node{}
	height, err := d.decodeTowerStructure(head, nodeMap)
	if err != nil {
		return nil, nil, err
	}

	skipList := &SkipList{Height: height, Head: head}

	return &Term{Text: text, DocFreq: len(postings), Postings: postings}, skipList, nil
}

func (d *indexDecoder) decodeNodePositions() (map[int]*Node, error) {
	dataLen, err := d.r.readUint32()
	if err != nil {
		return nil, err
	}
	nodeMap := make(map[int]*Node)
	nodeIndex := 1
	numValues := int(dataLen) / 4
	for i := 0; i < numValues; i += 2 {
		docID, err := d.r.readInt32()
		if err != nil {
			return nil, err
		}
		offset, err := d.r.readInt32()
		if err != nil {
			return nil, err
		}
		nodeMap[nodeIndex] = &Node{Key: Position{DocumentID: float64(docID), Offset: float64(offset)}}
		nodeIndex++
	}
	return nodeMap, nil
}

// decodeTowerStructure mirrors encodeTowerStructure's write order exactly:
// the sentinel head's tower is written first, then one tower per real node
// in list order (nodeCount+1 entries total) — the head's tower is applied
// directly to head rather than through nodeMap, since the head occupies no
// slot in the (1-based) node index space.
func (d *indexDecoder) decodeTowerStructure(head *Node, nodeMap map[int]*Node) (int, error) {
	maxHeight := 1

	readTowerInto := func(target *Node) error {
		towerLen, err := d.r.readUint32()
		if err != nil {
			return err
		}
		numIndices := int(towerLen) / 2
		for level := 0; level < numIndices; level++ {
			targetIdx, err := d.r.readUint16()
			if err != nil {
				return err
			}
			if targetIdx != 0 {
				target.Tower[level] = nodeMap[int(targetIdx)]
				if level+1 > maxHeight {
					maxHeight = level + 1
				}
			}
		}
		return nil
	}

	if err := readTowerInto(head); err != nil {
		return 0, err
	}

	nodeCount := len(nodeMap)
	for nodeIndex := 1; nodeIndex <= nodeCount; nodeIndex++ {
		if err := readTowerInto(nodeMap[nodeIndex]); err != nil {
			return 0, err
		}
	}
	return maxHeight, nil
}
