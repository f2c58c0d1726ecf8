// Package test holds cross-package end-to-end specs exercising the flow
// scheduler as a whole, rather than any one of its internal packages in
// isolation.
package test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestScheduler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Flow Scheduler Suite")
}
