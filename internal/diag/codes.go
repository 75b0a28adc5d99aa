package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Коллектор ресурсов
	ResInfo           Code = 1000
	ResFlavorConflict Code = 1001
	ResFiltered       Code = 1002

	// Пайплайн упаковки
	PkgInfo             Code = 2000
	PkgDunderFile       Code = 2001
	PkgDunderFileNotice Code = 2002
	PkgParentCorrected  Code = 2003

	// Linking resolver
	LinkInfo            Code = 3000
	LinkObjectFiles     Code = 3001
	LinkFramework       Code = 3002
	LinkSystemLibrary   Code = 3003
	LinkStaticLibrary   Code = 3004
	LinkDynamicLibrary  Code = 3005
	LinkExternalLibrary Code = 3006
)

func (c Code) String() string {
	return fmt.Sprintf("PF%04d", uint16(c))
}
