package pdfmodel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
)

// securityContext derives the per-object decryption key from the document's
// /Encrypt dictionary and a user-supplied passphrase, implementing the
// standard security handler's key derivation for revisions 2-4.
type securityContext struct {
	fileKey []byte
	useAES  bool
	revision int64
}

func newSecurityContext(r *Reader, passphrase string) (*securityContext, error) {
	encDict, err := r.resolveToDictionary(r.Trailer.Get("Encrypt"))
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindEncrypted, err)
	}

	filterName := encDict.GetName("Filter")
	if filterName != "Standard" {
		return nil, pdferrors.New(pdferrors.KindEncrypted, "unsupported security handler").WithContext(filterName)
	}

	revision := encDict.GetInt("R")
	keyLenBits := encDict.GetInt("Length")
	if keyLenBits == 0 {
		keyLenBits = 40
	}
	o := []byte(encDict.GetString("O"))
	p := int32(encDict.GetInt("P"))

	idArr := r.Trailer.GetArray("ID")
	var docID []byte
	if idArr.Len() > 0 {
		if s, ok := idArr.Get(0).(*String); ok {
			docID = []byte(s.Value)
		}
	}

	key := deriveFileKey([]byte(passphrase), o, p, docID, int(keyLenBits/8), revision)

	cryptFilterName := encDict.GetName("StmF")
	useAES := cryptFilterName == "AESV2" || cryptFilterName == "AESV3" || revision >= 5

	return &securityContext{fileKey: key, useAES: useAES, revision: revision}, nil
}

// padPassword is the fixed 32-byte padding string from the PDF standard
// security handler algorithm (ISO 32000-1 §7.6.3.3).
var padPassword = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func deriveFileKey(passphrase, o []byte, p int32, docID []byte, keyLenBytes int, revision int64) []byte {
	pw := append([]byte{}, passphrase...)
	if len(pw) < 32 {
		pw = append(pw, padPassword[:32-len(pw)]...)
	} else {
		pw = pw[:32]
	}

	h := md5.New()
	h.Write(pw)
	h.Write(o)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(docID)
	sum := h.Sum(nil)

	if revision >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5sum(sum[:keyLenBytes])
		}
	}
	if keyLenBytes > len(sum) {
		keyLenBytes = len(sum)
	}
	return sum[:keyLenBytes]
}

func md5sum(b []byte) []byte {
	sum := md5.Sum(b)
	return sum[:]
}

// objectKey derives the per-object RC4/AES key, appending the object number
// and generation (and the AES salt) to the file key as the standard
// security handler requires.
func (s *securityContext) objectKey(id ObjectID) []byte {
	buf := append([]byte{}, s.fileKey...)
	buf = append(buf,
		byte(id.Number), byte(id.Number>>8), byte(id.Number>>16),
		byte(id.Generation), byte(id.Generation>>8),
	)
	if s.useAES {
		buf = append(buf, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(buf)
	n := len(s.fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

func (s *securityContext) decrypt(id ObjectID, data []byte) []byte {
	key := s.objectKey(id)
	if s.useAES {
		return decryptAESCBC(key, data)
	}
	return decryptRC4(key, data)
}

func decryptRC4(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return data
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

func decryptAESCBC(key, data []byte) []byte {
	if len(data) < aes.BlockSize {
		return data
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return data
	}
	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return data
	}
	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(out, ciphertext)
	return unpadPKCS7(out)
}

func unpadPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	pad := int(data[len(data)-1])
	if pad <= 0 || pad > len(data) {
		return data
	}
	return data[:len(data)-pad]
}
