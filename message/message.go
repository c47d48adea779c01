package message

import (
	"encoding/binary"
	"fmt"

	"github.com/geode-social/social-contract/common"
	"github.com/geode-social/social-contract/host"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

type (
	// FreeMessage is a public message or a reply to one.
	FreeMessage struct {
		ID util.Uint256
		// Zero for top-level messages.
		ParentID util.Uint256
		Author   util.Uint160
		Content  string
		Media    string
		Link     string
		// Number of accounts endorsed the message
		EndorserCount uint64
		// Number of replies ever posted, including evicted ones
		ReplyCount uint64
		// Creation time in milliseconds
		CreatedAt uint64
	}

	// PaidMessage is a sponsored message targeting one interest tag. Every
	// endorsement pays PaymentPerEndorser from the staked funds.
	PaidMessage struct {
		ID            util.Uint256
		Author        util.Uint160
		Content       string
		Media         string
		Link          string
		EndorserCount uint64
		CreatedAt     uint64
		MaxEndorsers  uint64
		// Bid of the message in its topic
		PaymentPerEndorser uint64
		TargetTag          string
		TotalStaked        uint64
		// Not yet paid part of TotalStaked
		StakedBalance uint64
	}
)

// IsReply checks whether the message replies to another one.
func (m FreeMessage) IsReply() bool {
	return !m.ParentID.Equals(util.Uint256{})
}

// EncodeBinary implements io.Serializable.
func (m *FreeMessage) EncodeBinary(w *io.BinWriter) {
	w.WriteB(common.EntityVersion)
	w.WriteBytes(m.ID[:])
	w.WriteBytes(m.ParentID[:])
	w.WriteBytes(m.Author[:])
	w.WriteString(m.Content)
	w.WriteString(m.Media)
	w.WriteString(m.Link)
	w.WriteU64LE(m.EndorserCount)
	w.WriteU64LE(m.ReplyCount)
	w.WriteU64LE(m.CreatedAt)
}

// DecodeBinary implements io.Serializable.
func (m *FreeMessage) DecodeBinary(r *io.BinReader) {
	checkVersion(r)
	r.ReadBytes(m.ID[:])
	r.ReadBytes(m.ParentID[:])
	r.ReadBytes(m.Author[:])
	m.Content = r.ReadString()
	m.Media = r.ReadString()
	m.Link = r.ReadString()
	m.EndorserCount = r.ReadU64LE()
	m.ReplyCount = r.ReadU64LE()
	m.CreatedAt = r.ReadU64LE()
}

// EncodeBinary implements io.Serializable.
func (m *PaidMessage) EncodeBinary(w *io.BinWriter) {
	w.WriteB(common.EntityVersion)
	w.WriteBytes(m.ID[:])
	w.WriteBytes(m.Author[:])
	w.WriteString(m.Content)
	w.WriteString(m.Media)
	w.WriteString(m.Link)
	w.WriteU64LE(m.EndorserCount)
	w.WriteU64LE(m.CreatedAt)
	w.WriteU64LE(m.MaxEndorsers)
	w.WriteU64LE(m.PaymentPerEndorser)
	w.WriteString(m.TargetTag)
	w.WriteU64LE(m.TotalStaked)
	w.WriteU64LE(m.StakedBalance)
}

// DecodeBinary implements io.Serializable.
func (m *PaidMessage) DecodeBinary(r *io.BinReader) {
	checkVersion(r)
	r.ReadBytes(m.ID[:])
	r.ReadBytes(m.Author[:])
	m.Content = r.ReadString()
	m.Media = r.ReadString()
	m.Link = r.ReadString()
	m.EndorserCount = r.ReadU64LE()
	m.CreatedAt = r.ReadU64LE()
	m.MaxEndorsers = r.ReadU64LE()
	m.PaymentPerEndorser = r.ReadU64LE()
	m.TargetTag = r.ReadString()
	m.TotalStaked = r.ReadU64LE()
	m.StakedBalance = r.ReadU64LE()

	if r.Err == nil && (m.StakedBalance > m.TotalStaked || m.EndorserCount > m.MaxEndorsers) {
		r.Err = fmt.Errorf("paid message %s: broken accounting", m.ID.StringLE())
	}
}

func checkVersion(r *io.BinReader) {
	if v := r.ReadB(); r.Err == nil && v != common.EntityVersion {
		r.Err = fmt.Errorf("unsupported entity version %d", v)
	}
}

// ID returns identifier of the message posted by author at the given time.
func ID(h host.Hasher, author util.Uint160, content string, now uint64) util.Uint256 {
	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, now)

	return h.Hash(author.BytesBE(), []byte(content), ts)
}
