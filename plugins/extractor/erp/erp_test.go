package erp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"

	"rtkbatch/pkg/contract"
)

func file(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "igs20867.erp")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const weekly = `version 2
 EOP SOLUTION
  MJD      Xpole   Ypole  UT1-UTC    LOD  Xsig  Ysig   UTsig LODsig  Nr Nf Nt     Xrt    Yrt  Xrtsig Yrtsig
             10**-6"        .1us    .1us/d    10**-6"     .1us  .1us/d                10**-6"/d    10**-6"/d
58849.50   76100  282500 -1773091   2934    16    17     10     12  123  12  55   -1234   567    30    31
58850.50   76900  281200 -1775974   2764    15    16      9     11  124  12  55   -1111   555    30    31
58850.50   76900  281200 -1775974   2764    15    16      9     11  124  12  55   -1111   555    30    31
58851.50   77600  279900 -1778638   2591    15    16      9     11  125  12  55   -1000   540    30    31
`

// UT-ERP-01: 多行 MJD → 升序去重日期
func TestOrientationDates(t *testing.T) {
	ds, err := Orientation{}.Extract(context.Background(), file(t, weekly))
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	want := []civil.Date{
		{Year: 2020, Month: 1, Day: 1},
		{Year: 2020, Month: 1, Day: 2},
		{Year: 2020, Month: 1, Day: 3},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Fatalf("日期不符 (-want +got):\n%s", diff)
	}
}

func TestOrientationVersion(t *testing.T) {
	_, err := Orientation{}.Extract(context.Background(), file(t, "version 1\n58849.50 1 2 3\n"))
	if !errors.Is(err, contract.ErrUnsupportedRevision) || err.Error() != "Unknown version erp 1" {
		t.Fatalf("期望版本错误, got %v", err)
	}
}

// 空文件与无数据行均为 empty，不出现越界。
func TestOrientationEmpty(t *testing.T) {
	for _, body := range []string{"", "\n\n", "version 2\n  MJD Xpole\n"} {
		_, err := Orientation{}.Extract(context.Background(), file(t, body))
		if !errors.Is(err, contract.ErrEmpty) {
			t.Fatalf("%q: 期望 ErrEmpty, got %v", body, err)
		}
	}
}
