package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so that the layout stays
// readable by any protobuf tooling. The field numbers below are the schema:
//
//	message Message { string id = 1; string sender = 2; string receiver = 3;
//	  string text = 4; string image_ref = 5; bool read = 6; int64 at_unix_nano = 7; }
//	message User { string id = 1; string name = 2; string email = 3;
//	  string password_hash = 4; string profile_pic = 5; int64 created_at_unix_nano = 6; }
//
// They are part of the on-disk format and must never be reused.
const (
	messageFieldID       protowire.Number = 1
	messageFieldSender   protowire.Number = 2
	messageFieldReceiver protowire.Number = 3
	messageFieldText     protowire.Number = 4
	messageFieldImageRef protowire.Number = 5
	messageFieldRead     protowire.Number = 6
	messageFieldAt       protowire.Number = 7

	userFieldID           protowire.Number = 1
	userFieldName         protowire.Number = 2
	userFieldEmail        protowire.Number = 3
	userFieldPasswordHash protowire.Number = 4
	userFieldProfilePic   protowire.Number = 5
	userFieldCreatedAt    protowire.Number = 6
)

func encodeMessage(m DiskMessage) []byte {
	var b []byte
	b = appendString(b, messageFieldID, m.ID.String())
	b = appendString(b, messageFieldSender, m.Sender)
	b = appendString(b, messageFieldReceiver, m.Receiver)
	b = appendString(b, messageFieldText, m.Text)
	b = appendString(b, messageFieldImageRef, m.ImageRef)
	if m.Read {
		b = protowire.AppendTag(b, messageFieldRead, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	b = protowire.AppendTag(b, messageFieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.At.UnixNano()))
	return b
}

func decodeMessage(b []byte) (DiskMessage, error) {
	var m DiskMessage
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == messageFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, nil
			}
			id, err := uuid.Parse(v)
			if err != nil {
				return 0, fmt.Errorf("message id: %w", err)
			}
			m.ID = id
			return n, nil
		case num == messageFieldSender && typ == protowire.BytesType:
			return consumeString(b, &m.Sender)
		case num == messageFieldReceiver && typ == protowire.BytesType:
			return consumeString(b, &m.Receiver)
		case num == messageFieldText && typ == protowire.BytesType:
			return consumeString(b, &m.Text)
		case num == messageFieldImageRef && typ == protowire.BytesType:
			return consumeString(b, &m.ImageRef)
		case num == messageFieldRead && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Read = protowire.DecodeBool(v)
			return n, nil
		case num == messageFieldAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.At = time.Unix(0, int64(v)).UTC()
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return m, err
}

func encodeUser(u User) []byte {
	var b []byte
	b = appendString(b, userFieldID, u.ID)
	b = appendString(b, userFieldName, u.Name)
	b = appendString(b, userFieldEmail, u.Email)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = appendString(b, userFieldProfilePic, u.ProfilePic)
	b = protowire.AppendTag(b, userFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.CreatedAt.UnixNano()))
	return b
}

func decodeUser(b []byte) (User, error) {
	var u User
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == userFieldID && typ == protowire.BytesType:
			return consumeString(b, &u.ID)
		case num == userFieldName && typ == protowire.BytesType:
			return consumeString(b, &u.Name)
		case num == userFieldEmail && typ == protowire.BytesType:
			return consumeString(b, &u.Email)
		case num == userFieldPasswordHash && typ == protowire.BytesType:
			return consumeString(b, &u.PasswordHash)
		case num == userFieldProfilePic && typ == protowire.BytesType:
			return consumeString(b, &u.ProfilePic)
		case num == userFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			u.CreatedAt = time.Unix(0, int64(v)).UTC()
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return u, err
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n, nil
}

// consumeFields walks every field of b and hands its value bytes to fn,
// which returns how many bytes it consumed (negative on malformed input).
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
