package firmamentservice

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFirmamentService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "FirmamentService Suite")
}
