package id

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIDs(t *testing.T) {
	Convey("ID 生成", t, func() {
		Convey("连续生成的有序 ID 不重复且单调", func() {
			seen := make(map[string]bool)
			prev := ""
			for i := 0; i < 1000; i++ {
				v := NewOrdered()
				So(IsValid(v), ShouldBeTrue)
				So(seen[v], ShouldBeFalse)
				seen[v] = true
				So(v > prev, ShouldBeTrue)
				prev = v
			}
		})

		Convey("随机 ID 合法", func() {
			So(IsValid(New()), ShouldBeTrue)
			So(IsValid("not-a-uuid"), ShouldBeFalse)
		})
	})
}
