package payment

import "strings"

var InstructionMap = map[Family][]string{
	// ========================
	// MOBILE WALLET
	// ========================
	FamilyWallet: {
		"Хэтэвчний аппликейшнээ нээнэ үү",
		"QR кодыг уншуулах эсвэл нэхэмжлэх {{order_id}}-г сонгоно уу",
		"Төлөх дүн {{amount}}₮ эсэхийг шалгана уу",
		"Гүйлгээг баталгаажуулна уу",
	},

	// ========================
	// CARD
	// ========================
	FamilyCard: {
		"Картын дугаар, хүчинтэй хугацаа, CVV кодоо оруулна уу",
		"Банкнаас ирсэн нэг удаагийн кодоор баталгаажуулна уу",
		"{{amount}}₮ төлөгдөхийг хүлээнэ үү",
	},

	// ========================
	// BANK TRANSFER
	// ========================
	FamilyBank: {
		"Интернэт банкаа нээж шилжүүлэг хийх цэсийг сонгоно уу",
		"Гүйлгээний утга дээр захиалгын дугаар {{order_id}}-г бичнэ үү",
		"{{amount}}₮ шилжүүлнэ үү",
		"Гүйлгээний дугаараа төлбөрийн хуудсанд илгээнэ үү",
		"Админ шалгаж баталгаажуулсны дараа сургалт нээгдэнэ",
	},
}

// GetInstructions returns the checkout steps for the method's family.
func (s *Simulator) GetInstructions(method string) []string {
	if steps, ok := InstructionMap[s.FamilyOf(method)]; ok {
		return steps
	}

	return []string{
		"Төлбөрийн хуудсан дээрх зааврыг дагана уу",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}
